package http

import (
	"net/http"

	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/pkg/httpx"
	"github.com/medisched/tokend/pkg/slogx"
)

type LogoutAllHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP revokes every session for the authenticated subject. Access
// tokens already in other devices' hands stay valid until their own expiry.
func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, CodeAuthError, "authentication failed")
		return
	}

	if err := h.TokenService.LogoutAll(ctx, claims.Subject, AccessTokenFromContext(ctx)); err != nil {
		slogx.FromContext(ctx).Error("logout-all failed", "subject_id", claims.Subject, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, CodeAuthError, "failed to revoke sessions")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}
