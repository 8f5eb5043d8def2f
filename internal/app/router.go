package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/brigade-erp/brigade-erp/internal/analytics"
	"github.com/brigade-erp/brigade-erp/internal/inventory"
	"github.com/brigade-erp/brigade-erp/internal/masterdata"
	"github.com/brigade-erp/brigade-erp/internal/observability"
	"github.com/brigade-erp/brigade-erp/internal/recipes"
	"github.com/brigade-erp/brigade-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InventoryHandler  *inventory.Handler
	RecipesHandler    *recipes.Handler
	AnalyticsHandler  *analytics.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Brigade defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.InventoryHandler.MountRoutes(r)
		params.RecipesHandler.MountRoutes(r)
		// Master data registers /categories; the analytics figure routes
		// nest under /categories/{id} without overlap.
		params.MasterDataHandler.MountRoutes(r)
		params.AnalyticsHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
