package appbootstrap

import (
	"kestrel-sir/api"
	"kestrel-sir/config"
	"kestrel-sir/core/reporting"
	"kestrel-sir/core/reporting/jobs"
	"kestrel-sir/core/store"
	"kestrel-sir/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	audits := store.NewAuditStore(db)
	incidents := store.NewAuditedIncidentsStore(db, "api")
	facilities := store.NewFacilitiesStore(db)
	categories := store.NewCategoriesStore(db)
	analysts := store.NewAnalystsStore(db)

	policy, err := reporting.ParseOpenIncidentPolicy(cfg.Reporting.OpenIncidentPolicy)
	if err != nil {
		return nil, err
	}
	opts := reporting.DefaultOptions()
	opts.OpenIncidents = policy
	if cfg.Reporting.TopCostLimit > 0 {
		opts.TopCostLimit = cfg.Reporting.TopCostLimit
	}
	if cfg.Reporting.AnalystMinResolved > 0 {
		opts.AnalystMinResolved = cfg.Reporting.AnalystMinResolved
	}
	if cfg.Reporting.Deadline > 0 {
		opts.Deadline = cfg.Reporting.Deadline
	}
	engine, err := reporting.NewEngine(store.NewReportingSource(db), opts, logger)
	if err != nil {
		return nil, err
	}
	refresher := jobs.NewRefresher(cfg.Scheduler, engine, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Incidents:  incidents,
			Facilities: facilities,
			Categories: categories,
			Analysts:   analysts,
			Audits:     audits,
			Engine:     engine,
			Refresher:  refresher,
		},
		workers: []api.BackgroundWorker{refresher},
	}, nil
}
