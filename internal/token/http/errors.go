package http

import (
	"errors"
	"net/http"

	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/pkg/httpx"
)

// Stable machine-readable codes. Clients branch on these to decide between
// a silent refresh and a forced re-login, so they never change meaning.
const (
	CodeNoToken              = "NO_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeForceLogout          = "FORCE_LOGOUT"
	CodeAccountSuspended     = "ACCOUNT_SUSPENDED"
	CodeDirectoryUnavailable = "DIRECTORY_UNAVAILABLE"
	CodeNoRefreshToken       = "NO_REFRESH_TOKEN"
	CodeRefreshFailed        = "REFRESH_FAILED"
	CodeAuthError            = "AUTH_ERROR"
)

// writeTrustError converts a trust pipeline failure into the error envelope.
// Credential problems are 401, suspension is 403, and a directory outage is
// 503 so operators can tell "not allowed" from "could not check".
func writeTrustError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoToken):
		httpx.WriteError(w, http.StatusUnauthorized, CodeNoToken, "no access token provided")
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
	case errors.Is(err, service.ErrTokenRevoked):
		httpx.WriteError(w, http.StatusUnauthorized, CodeInvalidToken, "token has been revoked")
	case errors.Is(err, service.ErrForceLogout):
		httpx.WriteError(w, http.StatusUnauthorized, CodeForceLogout, "session terminated by administrator, please log in again")
	case errors.Is(err, service.ErrSuspended):
		msg := "account suspended"
		var suspended *service.SuspendedError
		if errors.As(err, &suspended) && suspended.Reason != "" {
			msg = "account suspended: " + suspended.Reason
		}
		httpx.WriteError(w, http.StatusForbidden, CodeAccountSuspended, msg)
	case errors.Is(err, service.ErrDirectoryUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, CodeDirectoryUnavailable, "account status check unavailable, try again")
	case errors.Is(err, service.ErrTokenInvalid):
		httpx.WriteError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid access token")
	default:
		httpx.WriteError(w, http.StatusUnauthorized, CodeAuthError, "authentication failed")
	}
}
