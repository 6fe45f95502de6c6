// Package httptransport exposes the wizards over HTTP. Every definition is
// mounted under its base path; the page slug in the route is the cursor a
// client resumes at.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/goliatone/go-intake/internal/auth"
	"github.com/goliatone/go-intake/internal/metrics"
	"github.com/goliatone/go-intake/internal/session"
	"github.com/goliatone/go-intake/pkg/review"
)

// Deps are the collaborators of the router.
type Deps struct {
	Sessions    *session.Manager
	Review      *review.Renderer
	Metrics     *metrics.Recorder
	Logger      *zap.Logger
	UserHeader  string
	SaveTimeout time.Duration
	// Ready reports whether backing services are reachable.
	Ready func(ctx context.Context) error
	// APIDoc serves the OpenAPI description at /openapi.json when set.
	APIDoc http.Handler
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	header := deps.UserHeader
	if header == "" {
		header = "X-User-Name"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	if deps.APIDoc != nil {
		r.Method(http.MethodGet, "/openapi.json", deps.APIDoc)
	}

	if deps.Sessions == nil {
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(header))
		for _, kind := range deps.Sessions.Kinds() {
			def, _ := deps.Sessions.Definition(kind)
			h := &wizardHandler{
				kind:        kind,
				sessions:    deps.Sessions,
				review:      deps.Review,
				logger:      logger.With(zap.String("wizard", kind)),
				saveTimeout: deps.SaveTimeout,
			}
			r.Route(basePath(def.BasePath, kind), h.routes)
		}
	})

	return r
}

func basePath(base, kind string) string {
	if base == "" || base == "/" {
		return "/" + kind
	}
	if base[0] != '/' {
		return "/" + base
	}
	return base
}
