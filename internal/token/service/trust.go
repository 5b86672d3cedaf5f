package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medisched/tokend/internal/token/directory"
	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/pkg/jwtx"
)

var (
	// ErrNoToken: the request carried no bearer token at all.
	ErrNoToken = errors.New("no_token")
	// ErrForceLogout: the token predates an administrative force-logout.
	ErrForceLogout = errors.New("force_logout")
	// ErrSuspended: the account is deactivated.
	ErrSuspended = errors.New("account_suspended")
	// ErrDirectoryUnavailable: the subject directory could not answer in
	// time. The pipeline fails closed.
	ErrDirectoryUnavailable = errors.New("directory_unavailable")
)

// SuspendedError carries the operator-facing reason alongside ErrSuspended.
type SuspendedError struct {
	Reason string
}

func (e *SuspendedError) Error() string { return "account_suspended" }

func (e *SuspendedError) Is(target error) bool { return target == ErrSuspended }

// TrustService layers account-level checks on top of token verification.
// Check is what the auth middleware calls per request.
type TrustService struct {
	Tokens    *TokenService
	Directory directory.Directory

	// LookupTimeout bounds each directory lookup. Zero means no extra
	// deadline beyond the request context.
	LookupTimeout time.Duration
}

// Check runs the full trust pipeline on a raw access token: cryptographic
// verification (blacklist first), then force-logout, then suspension. Order
// matters; a cheap rejection must not trigger a directory round trip.
func (s *TrustService) Check(ctx context.Context, accessToken string) (*jwtx.Claims, error) {
	if accessToken == "" {
		return nil, ErrNoToken
	}

	claims, err := s.Tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	entry, err := s.lookup(ctx, claims.Subject)
	if errors.Is(err, directory.ErrNotFound) {
		// A valid token for a subject the directory has never heard of
		// means the account was hard-deleted. Treat as untrusted.
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	// Anything minted before the cutoff is dead, without enumerating tokens.
	if entry.ForceLogoutAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(*entry.ForceLogoutAt) {
		return nil, ErrForceLogout
	}
	if !entry.IsActive {
		return nil, &SuspendedError{Reason: entry.SuspendReason}
	}

	return claims, nil
}

func (s *TrustService) lookup(ctx context.Context, subjectID string) (domain.DirectoryEntry, error) {
	if s.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.LookupTimeout)
		defer cancel()
	}
	return s.Directory.Lookup(ctx, subjectID)
}
