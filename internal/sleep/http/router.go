package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/service"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/httpx"
	"github.com/somnuslabs/somnus/pkg/jwtx"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	UserService    *service.UserService
	TokenLifecycle *service.TokenLifecycle
	SyncService    *service.SyncService
	RecordsService *service.RecordsService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
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
	r.registerAuth()
	r.registerOura()
	r.registerSleep()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /auth/register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{UserService: r.UserService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/login - strict rate limit (authentication attempts)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{UserService: r.UserService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerOura() {
	// GET /oura/connect - starts the provider authorization flow
	r.Mux.Handle("GET /v1/oura/connect",
		httpx.Chain(&OuraConnectHandler{Tokens: r.TokenLifecycle},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("oura:manage"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// GET /oura/callback - provider redirect target. Unauthenticated: the
	// one-time state binds it to the user who started the flow.
	r.Mux.Handle("GET /v1/oura/callback",
		httpx.Chain(&OuraCallbackHandler{Tokens: r.TokenLifecycle},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /oura/sync - talks to the provider; moderate limit per user
	r.Mux.Handle("POST /v1/oura/sync",
		httpx.Chain(&OuraSyncHandler{Sync: r.SyncService},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("oura:manage"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// DELETE /oura/connection - removes stored tokens
	r.Mux.Handle("DELETE /v1/oura/connection",
		httpx.Chain(&OuraDisconnectHandler{Tokens: r.TokenLifecycle},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("oura:manage"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSleep() {
	// GET /sleep - range listing, lenient per-user limit
	r.Mux.Handle("GET /v1/sleep",
		httpx.Chain(&SleepListHandler{Records: r.RecordsService},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("sleep:read"),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// GET /sleep/summary - must be registered alongside /sleep/{day}; the
	// literal segment takes precedence over the wildcard.
	r.Mux.Handle("GET /v1/sleep/summary",
		httpx.Chain(&SleepSummaryHandler{Records: r.RecordsService},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("sleep:read"),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/sleep/{day}",
		httpx.Chain(&SleepDayHandler{Records: r.RecordsService},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("sleep:read"),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("PATCH /v1/sleep/{day}/annotations",
		httpx.Chain(&SleepAnnotateHandler{Records: r.RecordsService},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope("sleep:write"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health endpoints - public, high limits
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
