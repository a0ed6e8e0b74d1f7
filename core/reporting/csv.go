package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// Table is the presentation-neutral form of a report: a fixed named column
// schema plus ordered rows, ready for CSV export or tabular rendering.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtInt(v int) string     { return strconv.Itoa(v) }
func fmtInt64(v int64) string { return strconv.FormatInt(v, 10) }

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Nil aggregates render as empty cells, never as zero.
func fmtIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return fmtInt(*v)
}

func fmtFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}

func fmtDecimalPtr(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func MonthlyTrendTable(rows []MonthlyTrendRow) Table {
	t := Table{Columns: []string{"year", "month", "incident_count", "avg_resolution_hours", "critical_count", "high_count", "mom_change", "mom_change_percent", "yoy_change"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt(r.Year), fmtInt(r.Month), fmtInt(r.IncidentCount),
			fmtFloatPtr(r.AvgResolutionHours), fmtInt(r.CriticalCount), fmtInt(r.HighCount),
			fmtIntPtr(r.MoMChange), fmtFloatPtr(r.MoMChangePercent), fmtIntPtr(r.YoYChange),
		})
	}
	return t
}

func FacilityScorecardTable(rows []FacilityScorecardRow) Table {
	t := Table{Columns: []string{"facility_id", "facility_name", "total_incidents", "closed_count", "closure_rate", "avg_resolution_hours", "critical_count", "total_cost", "volume_rank", "speed_rank"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt64(r.FacilityID), r.FacilityName, fmtInt(r.TotalIncidents), fmtInt(r.ClosedCount),
			fmtFloatPtr(r.ClosureRate), fmtFloatPtr(r.AvgResolutionHours), fmtInt(r.CriticalCount),
			fmtDecimalPtr(r.TotalCost), fmtInt(r.VolumeRank), fmtIntPtr(r.SpeedRank),
		})
	}
	return t
}

func CategoryParetoTable(rows []CategoryParetoRow) Table {
	t := Table{Columns: []string{"category_id", "category_name", "incident_count", "percent", "cumulative_count", "cumulative_percent"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt64(r.CategoryID), r.CategoryName, fmtInt(r.IncidentCount),
			fmtFloat(r.Percent), fmtInt(r.CumulativeCount), fmtFloat(r.CumulativePercent),
		})
	}
	return t
}

func SeverityDistributionTable(rows []SeverityDistributionRow) Table {
	t := Table{Columns: []string{"year", "month", "severity", "incident_count", "percent_of_month"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt(r.Year), fmtInt(r.Month), r.Severity, fmtInt(r.IncidentCount), fmtFloat(r.PercentOfMonth),
		})
	}
	return t
}

func PeakTimesTable(rows []PeakTimeRow) Table {
	t := Table{Columns: []string{"hour_of_day", "day_of_week", "day_name", "incident_count", "avg_resolution_hours"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt(r.HourOfDay), fmtInt(r.DayOfWeek), r.DayName, fmtInt(r.IncidentCount), fmtFloatPtr(r.AvgResolutionHours),
		})
	}
	return t
}

func ResolutionStatsTable(rows []ResolutionStatsRow) Table {
	t := Table{Columns: []string{"category_id", "category_name", "severity", "closed_count", "min_hours", "avg_hours", "max_hours", "stddev_hours"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt64(r.CategoryID), r.CategoryName, r.Severity, fmtInt(r.ClosedCount),
			fmtFloat(r.MinHours), fmtFloat(r.AvgHours), fmtFloat(r.MaxHours), fmtFloatPtr(r.StdDevHours),
		})
	}
	return t
}

func TopCostIncidentsTable(rows []TopCostIncidentRow) Table {
	t := Table{Columns: []string{"incident_id", "facility_name", "category_name", "severity", "status", "cost", "hours_to_resolve", "cost_per_hour"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt64(r.IncidentID), r.FacilityName, r.CategoryName, r.Severity, r.Status,
			r.Cost.StringFixed(2), fmtFloat(r.HoursToResolve), fmtDecimalPtr(r.CostPerHour),
		})
	}
	return t
}

func AnalystPerformanceTable(rows []AnalystPerformanceRow) Table {
	t := Table{Columns: []string{"analyst_id", "analyst_name", "resolved_count", "avg_resolution_hours", "within_24h_count", "within_24h_percent"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmtInt64(r.AnalystID), r.AnalystName, fmtInt(r.ResolvedCount),
			fmtFloat(r.AvgResolutionHours), fmtInt(r.Within24hCount), fmtFloat(r.Within24hPercent),
		})
	}
	return t
}
