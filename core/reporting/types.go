package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity levels, ordered by descending urgency.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// SeverityOrder lists severities from most to least urgent. Distribution
// rows are emitted in this order within a month.
var SeverityOrder = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// IsTerminalStatus reports whether a status counts as closed for closure
// rates and resolution-time statistics.
func IsTerminalStatus(status string) bool {
	return status == StatusResolved || status == StatusClosed
}

// IncidentRecord is one row of the read snapshot the engine aggregates over.
type IncidentRecord struct {
	ID         int64
	FacilityID int64
	CategoryID int64
	ReportedBy int64
	AssignedTo *int64
	DetectedAt time.Time
	ResolvedAt *time.Time
	Severity   string
	Status     string
	Cost       *decimal.Decimal
}

// Dimension rows joined against incidents.

type Facility struct {
	ID     int64
	Name   string
	Active bool
}

type Category struct {
	ID     int64
	Name   string
	Active bool
}

type Analyst struct {
	ID     int64
	Name   string
	Role   string
	Active bool
}

// Snapshot is a consistent read of the incident store. The engine never
// mutates it; every report recomputes from scratch over the same rows.
type Snapshot struct {
	Incidents  []IncidentRecord
	Facilities []Facility
	Categories []Category
	Analysts   []Analyst
}

// MonthlyTrendRow reports one calendar month, most recent first. Change
// fields are nil for the first month of the series; MoMChangePercent is nil
// whenever the prior month's count is zero.
type MonthlyTrendRow struct {
	Year               int      `json:"year"`
	Month              int      `json:"month"`
	IncidentCount      int      `json:"incident_count"`
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
	CriticalCount      int      `json:"critical_count"`
	HighCount          int      `json:"high_count"`
	MoMChange          *int     `json:"mom_change"`
	MoMChangePercent   *float64 `json:"mom_change_percent"`
	YoYChange          *int     `json:"yoy_change"`
}

// FacilityScorecardRow covers every active facility, including those with
// zero incidents (nil rate and averages). SpeedRank is nil when the facility
// has no closed incidents to rank by.
type FacilityScorecardRow struct {
	FacilityID         int64            `json:"facility_id"`
	FacilityName       string           `json:"facility_name"`
	TotalIncidents     int              `json:"total_incidents"`
	ClosedCount        int              `json:"closed_count"`
	ClosureRate        *float64         `json:"closure_rate"`
	AvgResolutionHours *float64         `json:"avg_resolution_hours"`
	CriticalCount      int              `json:"critical_count"`
	TotalCost          *decimal.Decimal `json:"total_cost"`
	VolumeRank         int              `json:"volume_rank"`
	SpeedRank          *int             `json:"speed_rank"`
}

type CategoryParetoRow struct {
	CategoryID        int64   `json:"category_id"`
	CategoryName      string  `json:"category_name"`
	IncidentCount     int     `json:"incident_count"`
	Percent           float64 `json:"percent"`
	CumulativeCount   int     `json:"cumulative_count"`
	CumulativePercent float64 `json:"cumulative_percent"`
}

type SeverityDistributionRow struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	Severity       string  `json:"severity"`
	IncidentCount  int     `json:"incident_count"`
	PercentOfMonth float64 `json:"percent_of_month"`
}

type PeakTimeRow struct {
	HourOfDay          int      `json:"hour_of_day"`
	DayOfWeek          int      `json:"day_of_week"`
	DayName            string   `json:"day_name"`
	IncidentCount      int      `json:"incident_count"`
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
}

// ResolutionStatsRow aggregates closed incidents for one (category, severity)
// pairing. Pairings with no closed incidents are omitted. StdDevHours is the
// sample standard deviation and is nil when only one observation exists.
type ResolutionStatsRow struct {
	CategoryID   int64    `json:"category_id"`
	CategoryName string   `json:"category_name"`
	Severity     string   `json:"severity"`
	ClosedCount  int      `json:"closed_count"`
	MinHours     float64  `json:"min_hours"`
	AvgHours     float64  `json:"avg_hours"`
	MaxHours     float64  `json:"max_hours"`
	StdDevHours  *float64 `json:"stddev_hours"`
}

type TopCostIncidentRow struct {
	IncidentID     int64            `json:"incident_id"`
	FacilityName   string           `json:"facility_name"`
	CategoryName   string           `json:"category_name"`
	Severity       string           `json:"severity"`
	Status         string           `json:"status"`
	Cost           decimal.Decimal  `json:"cost"`
	HoursToResolve float64          `json:"hours_to_resolve"`
	CostPerHour    *decimal.Decimal `json:"cost_per_hour"`
}

type AnalystPerformanceRow struct {
	AnalystID          int64   `json:"analyst_id"`
	AnalystName        string  `json:"analyst_name"`
	ResolvedCount      int     `json:"resolved_count"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	Within24hCount     int     `json:"within_24h_count"`
	Within24hPercent   float64 `json:"within_24h_percent"`
}

// Overview bundles every report computed against one snapshot.
type Overview struct {
	GeneratedAt          time.Time                 `json:"generated_at"`
	MonthlyTrend         []MonthlyTrendRow         `json:"monthly_trend"`
	FacilityScorecard    []FacilityScorecardRow    `json:"facility_scorecard"`
	CategoryPareto       []CategoryParetoRow       `json:"category_pareto"`
	SeverityDistribution []SeverityDistributionRow `json:"severity_distribution"`
	PeakTimes            []PeakTimeRow             `json:"peak_times"`
	ResolutionStats      []ResolutionStatsRow      `json:"resolution_stats"`
	TopCostIncidents     []TopCostIncidentRow      `json:"top_cost_incidents"`
	AnalystPerformance   []AnalystPerformanceRow   `json:"analyst_performance"`
}
