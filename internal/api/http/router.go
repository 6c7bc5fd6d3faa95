package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/internal/api/service"
	"github.com/LiaiZenApp/liazen-api/pkg/authn"
	"github.com/LiaiZenApp/liazen-api/pkg/httpx"
	"github.com/LiaiZenApp/liazen-api/pkg/observe"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"

	_ "github.com/LiaiZenApp/liazen-api/internal/api/docs" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	resolver     *authn.Resolver
	clientIP     httpx.KeyExtractor
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// AuthService enables the password login and refresh endpoints.
	AuthService *service.AuthService

	// LoginLimiter throttles login and refresh attempts per client IP.
	LoginLimiter httpx.Limiter

	// Metrics is optional. MetricsHandler, when set, is served at /metrics.
	Metrics        *observe.Metrics
	MetricsHandler http.Handler

	// ReadinessChecks are run by /readyz, keyed by dependency name.
	ReadinessChecks map[string]ReadinessCheck
}

func NewRouter(
	resolver *authn.Resolver,
	clientIP httpx.KeyExtractor,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		resolver:     resolver,
		clientIP:     clientIP,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}
}

func (r *Router) ApplyRoutes() {
	// Request logging runs first. Metrics sits directly around the mux so
	// the matched pattern is visible once the handler returns.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, r.Metrics.HTTPMiddleware)
	}

	r.registerAuth()
	r.registerIdentity()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						LiaiZen API
//	@version					0.1.0
//	@description				Authentication and throttling for the LiaiZen mobile API.
//
//	@contact.name				LiaiZen Team
//	@contact.url				https://github.com/LiaiZenApp/liazen-api
//
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	if r.AuthService == nil {
		return
	}

	var throttle []httpx.Middleware
	if r.LoginLimiter != nil {
		throttle = append(throttle, httpx.RateLimit(r.LoginLimiter, r.clientIP))
	}

	// POST /login - strict per-IP limit against credential stuffing
	loginHandler := &LoginHandler{AuthService: r.AuthService}
	r.Mux.Handle("POST /v1/auth/login", httpx.Chain(loginHandler, throttle...))

	refreshHandler := &RefreshHandler{AuthService: r.AuthService}
	r.Mux.Handle("POST /v1/auth/refresh", httpx.Chain(refreshHandler, throttle...))
}

func (r *Router) registerIdentity() {
	r.Mux.Handle("GET /v1/me",
		httpx.Chain(MeHandler(),
			httpx.Authenticate(r.resolver, r.clientIP),
		),
	)
}

func (r *Router) registerAdmin() {
	r.Mux.Handle("GET /v1/admin/ping",
		httpx.Chain(AdminPingHandler(),
			httpx.Authenticate(r.resolver, r.clientIP),
			httpx.RequireRole(r.resolver, domain.RoleAdmin),
		),
	)
}

func (r *Router) registerSystem() {
	// Probes are neither authenticated nor throttled.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.ReadinessChecks))

	if r.MetricsHandler != nil {
		r.Mux.Handle("GET /metrics", r.MetricsHandler)
	}
}
