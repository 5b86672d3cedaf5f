package domain

import "time"

// Session is the client-facing view of one live RefreshRecord: a logged-in
// device. Derived, never stored independently.
type Session struct {
	TokenID     string    `json:"tokenId"`
	DeviceLabel string    `json:"deviceLabel,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// SessionFromRecord maps a refresh record to its session view.
func SessionFromRecord(r RefreshRecord) Session {
	return Session{
		TokenID:     r.TokenID,
		DeviceLabel: r.DeviceLabel,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}
