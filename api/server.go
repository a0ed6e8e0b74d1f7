package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kestrel-sir/api/handlers"
	"kestrel-sir/config"
	"kestrel-sir/core/reporting"
	"kestrel-sir/core/reporting/jobs"
	"kestrel-sir/core/store"
	"kestrel-sir/core/utils"
)

// BackgroundWorker is anything composed into the runtime that needs a
// lifecycle alongside the HTTP server.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Incidents  store.IncidentsStore
	Facilities store.FacilitiesStore
	Categories store.CategoriesStore
	Analysts   store.AnalystsStore
	Audits     store.AuditStore
	Engine     *reporting.Engine
	Refresher  *jobs.Refresher
}

type Server struct {
	cfg    *config.AppConfig
	deps   ServerDeps
	logger *utils.Logger
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{cfg: cfg, deps: deps, logger: logger}
}

func (s *Server) Router() http.Handler {
	reports := handlers.NewReportsHandler(s.deps.Engine, s.deps.Refresher, s.logger)
	incidents := handlers.NewIncidentsHandler(s.deps.Incidents, s.deps.Audits, s.logger)
	catalog := handlers.NewCatalogHandler(s.deps.Facilities, s.deps.Categories, s.deps.Analysts, s.logger)

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.requestLogMiddleware)

	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/monthly-trend", reports.MonthlyTrend)
		r.Get("/facility-scorecard", reports.FacilityScorecard)
		r.Get("/category-pareto", reports.CategoryPareto)
		r.Get("/severity-distribution", reports.SeverityDistribution)
		r.Get("/peak-times", reports.PeakTimes)
		r.Get("/resolution-stats", reports.ResolutionStats)
		r.Get("/top-cost", reports.TopCostIncidents)
		r.Get("/analyst-performance", reports.AnalystPerformance)
		r.Get("/overview", reports.Overview)
		r.Get("/overview/latest", reports.LatestOverview)
	})

	r.Route("/api/incidents", func(r chi.Router) {
		r.Get("/", incidents.List)
		r.Post("/", incidents.Create)
		r.Get("/{id:[0-9]+}", incidents.Get)
		r.Put("/{id:[0-9]+}", incidents.Update)
		r.Post("/{id:[0-9]+}/resolve", incidents.Resolve)
		r.Get("/{id:[0-9]+}/actions", incidents.ListActions)
		r.Post("/{id:[0-9]+}/actions", incidents.AddAction)
		r.Get("/{id:[0-9]+}/audit", incidents.AuditTrail)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/facilities", catalog.ListFacilities)
		r.Post("/facilities", catalog.CreateFacility)
		r.Get("/categories", catalog.ListCategories)
		r.Post("/categories", catalog.CreateCategory)
		r.Get("/analysts", catalog.ListAnalysts)
		r.Post("/analysts", catalog.CreateAnalyst)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
