package handlers

import (
	"net/http"

	"kestrel-sir/core/reporting"
	"kestrel-sir/core/reporting/jobs"
	"kestrel-sir/core/utils"
)

type ReportsHandler struct {
	engine    *reporting.Engine
	refresher *jobs.Refresher
	logger    *utils.Logger
}

func NewReportsHandler(engine *reporting.Engine, refresher *jobs.Refresher, logger *utils.Logger) *ReportsHandler {
	return &ReportsHandler{engine: engine, refresher: refresher, logger: logger}
}

func (h *ReportsHandler) MonthlyTrend(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.MonthlyTrend(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "monthly_trend.csv", reporting.MonthlyTrendTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) FacilityScorecard(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.FacilityScorecard(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "facility_scorecard.csv", reporting.FacilityScorecardTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) CategoryPareto(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.CategoryPareto(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "category_pareto.csv", reporting.CategoryParetoTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) SeverityDistribution(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.SeverityDistribution(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "severity_distribution.csv", reporting.SeverityDistributionTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) PeakTimes(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.PeakTimes(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "peak_times.csv", reporting.PeakTimesTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) ResolutionStats(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.ResolutionStats(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "resolution_stats.csv", reporting.ResolutionStatsTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) TopCostIncidents(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.TopCostIncidents(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "top_cost_incidents.csv", reporting.TopCostIncidentsTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) AnalystPerformance(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.engine.AnalystPerformance(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, "analyst_performance.csv", reporting.AnalystPerformanceTable(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	overview, err := h.engine.RunOverview(r.Context(), f)
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// LatestOverview serves the scheduler's cached overview without recomputing.
func (h *ReportsHandler) LatestOverview(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		http.Error(w, "scheduler disabled", http.StatusNotFound)
		return
	}
	overview, lastRun, err := h.refresher.Latest()
	if overview == nil {
		if err != nil {
			writeReportError(w, err)
			return
		}
		http.Error(w, "no overview computed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_run": lastRun,
		"overview": overview,
	})
}
