package store

import (
	"context"

	"kestrel-sir/core/reporting"
)

// reportingSource adapts the store to the reporting engine's snapshot
// contract. It pushes the date/dimension filter down to the incident query
// and ships full dimension tables so the engine can do left-join semantics
// (zero-incident facilities still appear in scorecards).
type reportingSource struct {
	db         *DB
	incidents  IncidentsStore
	facilities FacilitiesStore
	categories CategoriesStore
	analysts   AnalystsStore
}

func NewReportingSource(db *DB) reporting.SnapshotSource {
	return &reportingSource{
		db:         db,
		incidents:  NewIncidentsStore(db),
		facilities: NewFacilitiesStore(db),
		categories: NewCategoriesStore(db),
		analysts:   NewAnalystsStore(db),
	}
}

func (s *reportingSource) LoadSnapshot(ctx context.Context, f reporting.Filter) (*reporting.Snapshot, error) {
	incidents, err := s.incidents.ListIncidents(ctx, IncidentFilter{
		From:       f.From,
		To:         f.To,
		FacilityID: f.FacilityID,
		CategoryID: f.CategoryID,
	})
	if err != nil {
		return nil, err
	}
	facilities, err := s.facilities.ListFacilities(ctx, false)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.ListCategories(ctx, false)
	if err != nil {
		return nil, err
	}
	analysts, err := s.analysts.ListAnalysts(ctx, false)
	if err != nil {
		return nil, err
	}

	snap := &reporting.Snapshot{
		Incidents:  make([]reporting.IncidentRecord, 0, len(incidents)),
		Facilities: make([]reporting.Facility, 0, len(facilities)),
		Categories: make([]reporting.Category, 0, len(categories)),
		Analysts:   make([]reporting.Analyst, 0, len(analysts)),
	}
	for _, inc := range incidents {
		snap.Incidents = append(snap.Incidents, reporting.IncidentRecord{
			ID:         inc.ID,
			FacilityID: inc.FacilityID,
			CategoryID: inc.CategoryID,
			ReportedBy: inc.ReportedBy,
			AssignedTo: inc.AssignedTo,
			DetectedAt: inc.DetectedAt,
			ResolvedAt: inc.ResolvedAt,
			Severity:   inc.Severity,
			Status:     inc.Status,
			Cost:       inc.Cost,
		})
	}
	for _, fac := range facilities {
		snap.Facilities = append(snap.Facilities, reporting.Facility{ID: fac.ID, Name: fac.Name, Active: fac.Active})
	}
	for _, cat := range categories {
		snap.Categories = append(snap.Categories, reporting.Category{ID: cat.ID, Name: cat.Name, Active: cat.Active})
	}
	for _, an := range analysts {
		snap.Analysts = append(snap.Analysts, reporting.Analyst{ID: an.ID, Name: an.Name, Role: an.Role, Active: an.Active})
	}
	return snap, nil
}
