package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
)

type RouterOptions struct {
	// Tokens verifies bearer credentials on member routes.
	Tokens TokenVerifier
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// VerifyLimiter throttles POST /membership/verify per client. Nil disables throttling.
	VerifyLimiter *ClientLimiter
	CORSOrigins   []string
	Logger        *zap.Logger
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	log := logging.OrNop(opts.Logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", correlationHeader},
		ExposedHeaders: []string{correlationHeader, "Retry-After"},
		MaxAge:         300,
	}))

	// Health endpoint is used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/.well-known/jwks.json", s.GetJWKS)

	r.Route("/membership", func(r chi.Router) {
		r.Get("/challenge", s.GetChallenge)
		r.Get("/stats", s.GetStats)
		r.Group(func(r chi.Router) {
			if opts.VerifyLimiter != nil {
				r.Use(opts.VerifyLimiter.Middleware)
			}
			r.Post("/verify", s.PostVerify)
		})

		r.Group(func(r chi.Router) {
			r.Use(NewAuthMiddleware(opts.Tokens))
			r.Get("/status", s.GetStatus)
			r.Get("/profile", s.GetProfile)

			r.Group(func(r chi.Router) {
				r.Use(RequireVerifiedMember(s.Members, log))
				r.Patch("/profile", s.PatchProfile)
				r.Get("/members", s.ListMembers)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}
