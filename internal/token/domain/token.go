package domain

import (
	"time"

	"github.com/medisched/tokend/pkg/jwtx"
)

// TokenPair is what the issuance and refresh endpoints return.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int64  `json:"expiresIn"`        // access token lifetime, seconds
	RefreshExpiresIn int64  `json:"refreshExpiresIn"` // refresh token lifetime, seconds
}

// RefreshRecord is the server-side source of truth for a live refresh token,
// keyed by (SubjectID, TokenID). Its existence is what makes the token
// usable; deletion is authoritative revocation.
type RefreshRecord struct {
	SubjectID   string       `json:"subject_id"`
	TokenID     string       `json:"token_id"`
	Payload     jwtx.Payload `json:"payload"` // identity snapshot replayed on rotation
	DeviceLabel string       `json:"device_label,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given time.
func (r RefreshRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// BlacklistEntry marks one revoked access token. ExpiresAt is copied from the
// token's own exp claim so the entry can be pruned without re-parsing.
type BlacklistEntry struct {
	Fingerprint   string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}
