package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/medisched/tokend/pkg/cryptox"
	"github.com/medisched/tokend/pkg/jwtx"
	"github.com/medisched/tokend/pkg/slogx"
)

var (
	// ErrTokenExpired: the access token is past exp; the client should
	// refresh and retry.
	ErrTokenExpired = errors.New("access_token_expired")
	// ErrTokenInvalid: bad signature, structure, issuer, or kind.
	ErrTokenInvalid = errors.New("invalid_token")
	// ErrTokenRevoked: the access token was blacklisted by a logout.
	ErrTokenRevoked = errors.New("token_revoked")
	// ErrRefreshInvalid: the refresh token failed cryptographic checks.
	ErrRefreshInvalid = errors.New("invalid_refresh_token")
	// ErrRefreshNotFound: no live record for the presented refresh token.
	// Deliberately covers logout, prior consumption, eviction, and expiry
	// alike; the caller cannot probe which one happened.
	ErrRefreshNotFound = errors.New("refresh_token_not_found_or_revoked")
)

// TokenService implements the token pair protocol: issuance, verification,
// single-use refresh rotation, revocation, and housekeeping.
type TokenService struct {
	Codec *jwtx.Codec
	Store store.Store

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *TokenService) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssuePair mints an access/refresh pair for the given identity snapshot and
// registers the refresh record. Called by the login flow and by Refresh.
func (s *TokenService) IssuePair(ctx context.Context, payload jwtx.Payload, deviceLabel string) (domain.TokenPair, error) {
	now := s.clock()

	tokenID, err := cryptox.NewTokenID()
	if err != nil {
		return domain.TokenPair{}, err
	}

	access, err := s.Codec.IssueAccess(payload)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.Codec.IssueRefresh(payload.SubjectID, tokenID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	rec := domain.RefreshRecord{
		SubjectID:   payload.SubjectID,
		TokenID:     tokenID,
		Payload:     payload,
		DeviceLabel: deviceLabel,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.Codec.RefreshTTL()),
	}
	if err := s.Store.RefreshSessions().Put(ctx, rec); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh record: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(s.Codec.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.Codec.RefreshTTL().Seconds()),
	}, nil
}

// VerifyAccess checks an access token: blacklist membership first (cheap
// rejection, no crypto needed), then signature/expiry/kind.
func (s *TokenService) VerifyAccess(ctx context.Context, accessToken string) (*jwtx.Claims, error) {
	revoked, err := s.Store.Blacklist().Contains(ctx, cryptox.Fingerprint(accessToken))
	if err != nil {
		return nil, fmt.Errorf("blacklist check: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims, err := s.Codec.Verify(accessToken, jwtx.KindAccess)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Refresh rotates a refresh token: the presented token's record is consumed
// (making replay fail) and a fresh pair is issued from the payload captured
// at original login. Rotation is atomic from the caller's perspective; of
// two racing calls on the same token exactly one succeeds.
func (s *TokenService) Refresh(ctx context.Context, refreshToken, deviceLabel string) (domain.TokenPair, error) {
	claims, err := s.Codec.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return domain.TokenPair{}, ErrRefreshInvalid
	}

	rec, err := s.Store.RefreshSessions().Consume(ctx, claims.Subject, claims.TokenID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TokenPair{}, ErrRefreshNotFound
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("consume refresh record: %w", err)
	}

	label := rec.DeviceLabel
	if deviceLabel != "" {
		label = deviceLabel
	}

	// The stored payload, not the live directory record, is replayed: role
	// and clinic changes since login only propagate via re-login.
	pair, err := s.IssuePair(ctx, rec.Payload, label)
	if err != nil {
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("refresh token rotated", "subject_id", rec.SubjectID)
	return pair, nil
}

// Logout blacklists the access token and, when a refresh token is supplied,
// deletes its record. Never fails: logging out with already-dead tokens is
// still a successful logout.
func (s *TokenService) Logout(ctx context.Context, accessToken, refreshToken string) {
	log := slogx.FromContext(ctx)

	s.blacklist(ctx, accessToken)

	if refreshToken == "" {
		return
	}
	// Only subject and token_id are needed to target the delete; signature
	// verification buys nothing here.
	claims, err := s.Codec.DecodeUnverified(refreshToken)
	if err != nil || claims.Subject == "" || claims.TokenID == "" {
		log.Debug("logout: undecodable refresh token ignored")
		return
	}
	if err := s.Store.RefreshSessions().Delete(ctx, claims.Subject, claims.TokenID); err != nil {
		log.Warn("logout: refresh record delete failed", "err", err)
	}
}

// LogoutAll revokes every refresh record for the subject and blacklists the
// presented access token. Access tokens on other devices stay valid until
// their own expiry, a bounded exposure window of one access TTL.
func (s *TokenService) LogoutAll(ctx context.Context, subjectID, currentAccessToken string) error {
	if currentAccessToken != "" {
		s.blacklist(ctx, currentAccessToken)
	}
	if err := s.Store.RefreshSessions().DeleteAll(ctx, subjectID); err != nil {
		return fmt.Errorf("delete refresh records: %w", err)
	}
	slogx.FromContext(ctx).Info("all sessions revoked", "subject_id", subjectID)
	return nil
}

// ListSessions returns the subject's live sessions, one per refresh record.
func (s *TokenService) ListSessions(ctx context.Context, subjectID string) ([]domain.Session, error) {
	recs, err := s.Store.RefreshSessions().ListActive(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(recs))
	for _, rec := range recs {
		sessions = append(sessions, domain.SessionFromRecord(rec))
	}
	return sessions, nil
}

// Cleanup prunes expired blacklist entries and refresh records. It only
// removes logically dead state, so it is safe to run concurrently with every
// other operation and idempotent.
func (s *TokenService) Cleanup(ctx context.Context) error {
	return errors.Join(
		s.Store.Blacklist().DeleteExpired(ctx),
		s.Store.RefreshSessions().DeleteExpired(ctx),
	)
}

// blacklist registers an access token as revoked, keyed by fingerprint and
// expiring at the token's own exp. Tampered or unparseable tokens are skipped;
// they can never verify anyway.
func (s *TokenService) blacklist(ctx context.Context, accessToken string) {
	log := slogx.FromContext(ctx)

	claims, err := s.Codec.DecodeUnverified(accessToken)
	if err != nil || claims.ExpiresAt == nil {
		log.Debug("blacklist: undecodable access token ignored")
		return
	}
	entry := domain.BlacklistEntry{
		Fingerprint:   cryptox.Fingerprint(accessToken),
		BlacklistedAt: s.clock(),
		ExpiresAt:     claims.ExpiresAt.Time,
	}
	if err := s.Store.Blacklist().Add(ctx, entry); err != nil {
		log.Warn("blacklist: add failed", "err", err)
	}
}
