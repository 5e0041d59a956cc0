package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/buildstream-io/buildstream/internal/service"
	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/pkg/httpx"
	"github.com/buildstream-io/buildstream/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store               store.Store
	RegistrationService *service.RegistrationService
	CatalogService      *service.CatalogService
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
	r.registerAuth()
	r.registerJobs()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	registerHandler := &RegisterHandler{RegistrationService: r.RegistrationService}

	// POST /auth/register - strict rate limit by IP (credential minting endpoint)
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /auth/clients - moderate rate limit (admin read operation, Basic auth gated)
	clientsHandler := &ClientsHandler{RegistrationService: r.RegistrationService}
	r.Mux.Handle("GET /auth/clients",
		httpx.Chain(clientsHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerJobs() {
	catalogHandler := &CatalogHandler{CatalogService: r.CatalogService}

	// POST /jobs/{jobId}/stages/parse-catalog - moderate rate limit (file upload)
	r.Mux.Handle("POST /jobs/{jobId}/stages/parse-catalog",
		httpx.Chain(catalogHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
