package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/observability"
)

// RouterConfig selects the optional endpoints.
type RouterConfig struct {
	MetricsPath    string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter builds the daemon's router. A nil collector disables the
// metrics endpoint and request metrics.
func NewRouter(h *Handler, collector *observability.Collector, config RouterConfig, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(collector, logger))
	if len(config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(config.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": h.sessions.Len(),
		})
	})

	if collector != nil && config.MetricsPath != "" {
		r.Handle(config.MetricsPath, promhttp.HandlerFor(collector.GetRegistry(), promhttp.HandlerOpts{}))
	}

	h.Routes(r)
	return r
}
