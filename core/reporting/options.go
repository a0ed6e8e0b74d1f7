package reporting

import (
	"time"

	"kestrel-sir/core/utils"
)

// OpenIncidentPolicy controls how unresolved incidents enter resolution-hour
// averages. The source data substitutes "now" for a missing resolution date,
// which biases averages downward as open incidents age; here the choice is
// explicit.
type OpenIncidentPolicy string

const (
	// ExcludeOpen leaves unresolved incidents out of resolution averages.
	// They are censored observations, not zero-duration ones.
	ExcludeOpen OpenIncidentPolicy = "exclude"
	// ProvisionalNow includes unresolved incidents with a provisional
	// duration measured against the engine clock.
	ProvisionalNow OpenIncidentPolicy = "provisional_now"
)

func ParseOpenIncidentPolicy(raw string) (OpenIncidentPolicy, error) {
	switch OpenIncidentPolicy(raw) {
	case ExcludeOpen, ProvisionalNow:
		return OpenIncidentPolicy(raw), nil
	case "":
		return ExcludeOpen, nil
	}
	return "", configErr("open_incident_policy", "must be exclude or provisional_now")
}

type Options struct {
	TopCostLimit       int
	AnalystMinResolved int
	OpenIncidents      OpenIncidentPolicy
	Clock              utils.Clock
	// Deadline bounds a single in-process aggregation. Zero means no cutoff
	// beyond the caller's context.
	Deadline time.Duration
}

func DefaultOptions() Options {
	return Options{
		TopCostLimit:       20,
		AnalystMinResolved: 5,
		OpenIncidents:      ExcludeOpen,
		Clock:              utils.SystemClock(),
	}
}

func (o Options) validate() error {
	if o.TopCostLimit < 0 {
		return configErr("top_cost_limit", "must not be negative")
	}
	if o.AnalystMinResolved < 0 {
		return configErr("analyst_min_resolved", "must not be negative")
	}
	switch o.OpenIncidents {
	case ExcludeOpen, ProvisionalNow:
	default:
		return configErr("open_incident_policy", "must be exclude or provisional_now")
	}
	if o.Deadline < 0 {
		return configErr("deadline", "must not be negative")
	}
	return nil
}

// Filter narrows the snapshot a report runs over. Zero values mean
// unbounded / all.
type Filter struct {
	From       *time.Time
	To         *time.Time
	FacilityID int64
	CategoryID int64
}

func (f Filter) validate() error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return configErr("date_range", "from is after to")
	}
	if f.FacilityID < 0 {
		return configErr("facility_id", "must not be negative")
	}
	if f.CategoryID < 0 {
		return configErr("category_id", "must not be negative")
	}
	return nil
}

func (f Filter) matches(inc IncidentRecord) bool {
	if f.From != nil && inc.DetectedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && inc.DetectedAt.After(*f.To) {
		return false
	}
	if f.FacilityID > 0 && inc.FacilityID != f.FacilityID {
		return false
	}
	if f.CategoryID > 0 && inc.CategoryID != f.CategoryID {
		return false
	}
	return true
}
