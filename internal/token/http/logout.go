package http

import (
	"encoding/json"
	"net/http"

	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/pkg/httpx"
)

type LogoutHandler struct {
	TokenService *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// ServeHTTP ends the current session: the presented access token is
// blacklisted and the optional refresh token's record deleted. Logout always
// succeeds; dead tokens are a successful logout too.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req logoutRequest
	if r.Body != nil {
		// Body is optional; decode errors are ignored on purpose.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.TokenService.Logout(ctx, AccessTokenFromContext(ctx), req.RefreshToken)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}
