package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantage-wms/vantage/internal/outbox"
)

// OutboxStatsPort exposes outbox counters for the ops surface.
type OutboxStatsPort interface {
	Stats(ctx context.Context) (outbox.Stats, error)
}

// RouterParams groups dependencies for building the ops router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Pool   *pgxpool.Pool
	Outbox OutboxStatsPort
}

// NewRouter builds the operational HTTP router. It carries no business
// surface; the core is invoked in-process by its callers.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if p.Pool != nil {
			if err := p.Pool.Ping(ctx); err != nil {
				p.Logger.Warn("healthz ping", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/outbox/stats", func(w http.ResponseWriter, req *http.Request) {
		if p.Outbox == nil {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		stats, err := p.Outbox.Stats(req.Context())
		if err != nil {
			p.Logger.Error("outbox stats", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
