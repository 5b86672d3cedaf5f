package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/pkg/httpx"
	"github.com/medisched/tokend/pkg/slogx"
)

type RefreshHandler struct {
	TokenService *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP rotates a refresh token. The refresh token itself is the only
// credential; no access token is required. A failed rotation never reveals
// whether the token was consumed, revoked, or never existed.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, CodeNoRefreshToken, "refreshToken is required")
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken, r.Header.Get("X-Device-Label"))
	if err != nil {
		if !errors.Is(err, service.ErrRefreshInvalid) && !errors.Is(err, service.ErrRefreshNotFound) {
			slogx.FromContext(ctx).Error("refresh failed", "err", err)
		}
		httpx.WriteError(w, http.StatusUnauthorized, CodeRefreshFailed, "refresh token rejected, please log in again")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}
