package http

import (
	"net/http"

	"github.com/medisched/tokend/pkg/httpx"
	"github.com/medisched/tokend/pkg/jwtx"
)

type ValidateHandler struct{}

type validateResponse struct {
	Valid bool         `json:"valid"`
	User  jwtx.Payload `json:"user"`
}

// ServeHTTP reports the identity behind a token that already survived the
// trust pipeline. Gateways call this to validate tokens they cannot verify
// themselves.
func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, CodeAuthError, "authentication failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, validateResponse{
		Valid: true,
		User:  claims.Payload(),
	})
}
