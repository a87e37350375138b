package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/delivery/http/handler"
	"github.com/user/knowledge-service/internal/delivery/http/middleware"
	"github.com/user/knowledge-service/pkg/metrics"
)

// requestTimeout covers an inline ingest, which may crawl several related sources.
const requestTimeout = 5 * time.Minute

// New builds the API router. gatherer serves /metrics; nil uses the default registry.
func New(h *handler.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	if gatherer == nil {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/ingest", h.HandleIngest)
		r.Get("/search", h.HandleSearch)
		r.Post("/ask", h.HandleAsk)
		r.Get("/collections", h.HandleListCollections)
		r.Get("/jobs/{id}", h.HandleGetJob)
		r.Get("/settings", h.HandleGetSettings)
		r.Patch("/settings", h.HandleUpdateSettings)
	})

	return r
}
