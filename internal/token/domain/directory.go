package domain

import "time"

// DirectoryEntry is the read-only slice of the external user/doctor directory
// that the trust checks consult on every protected request.
type DirectoryEntry struct {
	// ForceLogoutAt, when set, invalidates every access token issued before
	// it without enumerating the tokens.
	ForceLogoutAt *time.Time
	IsActive      bool
	SuspendReason string
}
