package http

import (
	"net/http"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/pkg/httpx"
	"github.com/medisched/tokend/pkg/slogx"
)

type SessionsHandler struct {
	TokenService *service.TokenService
}

type sessionsResponse struct {
	Sessions []domain.Session `json:"sessions"`
}

// ServeHTTP lists the subject's live sessions, oldest first. One entry per
// outstanding refresh token, so at most the per-subject cap.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, CodeAuthError, "authentication failed")
		return
	}

	sessions, err := h.TokenService.ListSessions(ctx, claims.Subject)
	if err != nil {
		slogx.FromContext(ctx).Error("session listing failed", "subject_id", claims.Subject, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, CodeAuthError, "failed to list sessions")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}
