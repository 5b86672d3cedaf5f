package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/medisched/tokend/pkg/httpx"
	"github.com/medisched/tokend/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	TokenService *service.TokenService
	TrustService *service.TrustService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	auth := RequireAuth(r.TrustService)

	// POST /token/refresh - strict rate limit by IP: the refresh token is
	// the only credential, which makes this the endpoint worth brute-forcing.
	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /token/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /token/logout",
		httpx.Chain(logoutHandler,
			auth,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	logoutAllHandler := &LogoutAllHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /token/logout-all",
		httpx.Chain(logoutAllHandler,
			auth,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	sessionsHandler := &SessionsHandler{TokenService: r.TokenService}
	r.Mux.Handle("GET /token/sessions",
		httpx.Chain(sessionsHandler,
			auth,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	validateHandler := &ValidateHandler{}
	r.Mux.Handle("POST /token/validate",
		httpx.Chain(validateHandler,
			auth,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
