package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/pkg/httpx"
	"github.com/medisched/tokend/pkg/jwtx"
	"github.com/medisched/tokend/pkg/slogx"
)

type ctxKey string

const (
	// CtxKeyClaims holds the verified *jwtx.Claims for the request.
	CtxKeyClaims ctxKey = "claims"
	// CtxKeyAccessToken holds the raw bearer token, needed by logout to
	// blacklist the exact credential that was presented.
	CtxKeyAccessToken ctxKey = "access_token"
)

// ClaimsFromContext returns the verified claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*jwtx.Claims, bool) {
	claims, ok := ctx.Value(CtxKeyClaims).(*jwtx.Claims)
	return claims, ok
}

// AccessTokenFromContext returns the raw bearer token for the request.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(CtxKeyAccessToken).(string)
	return token
}

// BearerToken extracts the token from the Authorization header. Empty when
// the header is missing or not a Bearer scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth runs the trust pipeline on every request and injects the
// verified identity into the context. Requests that fail any check never
// reach the wrapped handler.
func RequireAuth(trust *service.TrustService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := BearerToken(r)

			claims, err := trust.Check(ctx, token)
			if err != nil {
				slogx.FromContext(ctx).Debug("request rejected", "err", err)
				writeTrustError(w, err)
				return
			}

			ctx = context.WithValue(ctx, CtxKeyClaims, claims)
			ctx = context.WithValue(ctx, CtxKeyAccessToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
