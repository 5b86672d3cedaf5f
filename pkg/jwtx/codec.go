// Package jwtx signs and verifies the two token kinds of the pair protocol:
// short-lived access tokens and long-lived single-use refresh tokens, each
// under its own HS256 secret.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired means the signature was fine but the token is past exp.
	// Callers treat an expired access token as an instruction to refresh.
	ErrExpired = errors.New("jwtx: token expired")
	// ErrMalformed covers bad structure, bad signature, and issuer mismatch.
	ErrMalformed = errors.New("jwtx: malformed token")
	// ErrWrongKind means a valid token of the other kind was presented.
	ErrWrongKind = errors.New("jwtx: wrong token kind")
)

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

type Codec struct {
	config Config
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("jwtx: both secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("jwtx: access and refresh secrets must differ")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwtx: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwtx: invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{config: cfg}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.config.AccessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// IssueAccess signs an access token for the given identity snapshot.
func (c *Codec) IssueAccess(p Payload) (string, error) {
	now := c.config.Now()
	claims := Claims{
		SubjectKind: p.SubjectKind,
		Role:        p.Role,
		Email:       p.Email,
		ClinicID:    p.ClinicID,
		BranchID:    p.BranchID,
		Kind:        KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.config.AccessSecret)
}

// IssueRefresh signs a refresh token carrying only the subject and the random
// token id that keys the server-side record.
func (c *Codec) IssueRefresh(subjectID, tokenID string) (string, error) {
	now := c.config.Now()
	claims := Claims{
		Kind:    KindRefresh,
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.RefreshTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.config.RefreshSecret)
}

// Verify checks signature, issuer, expiry, and the kind tag for the expected
// token kind. The returned error is one of ErrExpired, ErrWrongKind, or
// ErrMalformed so callers can react differently to each.
func (c *Codec) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret := c.config.AccessSecret
	if kind == KindRefresh {
		secret = c.config.RefreshSecret
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	if kind == KindRefresh && claims.TokenID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature or expiry.
// Blacklisting and logout only need exp / subject / token_id, and a tampered
// token in either path is harmless: the blacklist rejects strictly more, and
// logout deletes at most the caller's own record key.
func (c *Codec) DecodeUnverified(tokenStr string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &claims, nil
}
