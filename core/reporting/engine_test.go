package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kestrel-sir/core/utils"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	snap *Snapshot
	err  error
}

func (s *stubSource) LoadSnapshot(ctx context.Context, f Filter) (*Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func newTestEngine(t *testing.T, snap *Snapshot, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Clock = utils.FixedClock{At: testNow}
	if mutate != nil {
		mutate(&opts)
	}
	eng, err := NewEngine(&stubSource{snap: snap}, opts, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func baseDims() ([]Facility, []Category, []Analyst) {
	facilities := []Facility{
		{ID: 1, Name: "Datacenter North", Active: true},
		{ID: 2, Name: "Datacenter South", Active: true},
		{ID: 3, Name: "Decommissioned Site", Active: false},
	}
	categories := []Category{
		{ID: 1, Name: "Intrusion", Active: true},
		{ID: 2, Name: "Phishing", Active: true},
		{ID: 3, Name: "Legacy", Active: false},
	}
	analysts := []Analyst{
		{ID: 1, Name: "Avery", Role: "analyst", Active: true},
		{ID: 2, Name: "Blake", Role: "senior", Active: true},
	}
	return facilities, categories, analysts
}

func mustDecimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func incidentAt(id int64, detected time.Time, hoursToResolve float64) IncidentRecord {
	resolved := detected.Add(time.Duration(hoursToResolve * float64(time.Hour)))
	return IncidentRecord{
		ID:         id,
		FacilityID: 1,
		CategoryID: 1,
		ReportedBy: 1,
		DetectedAt: detected,
		ResolvedAt: &resolved,
		Severity:   SeverityMedium,
		Status:     StatusResolved,
	}
}

func openIncidentAt(id int64, detected time.Time) IncidentRecord {
	return IncidentRecord{
		ID:         id,
		FacilityID: 1,
		CategoryID: 1,
		ReportedBy: 1,
		DetectedAt: detected,
		Severity:   SeverityMedium,
		Status:     StatusOpen,
	}
}

func TestMonthlyTrendChanges(t *testing.T) {
	facilities, categories, analysts := baseDims()
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	jan := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	id := int64(1)
	for i := 0; i < 10; i++ {
		snap.Incidents = append(snap.Incidents, incidentAt(id, jan.Add(time.Duration(i)*time.Hour), 4))
		id++
	}
	for i := 0; i < 15; i++ {
		snap.Incidents = append(snap.Incidents, incidentAt(id, feb.Add(time.Duration(i)*time.Hour), 8))
		id++
	}

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.MonthlyTrend(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Most recent first.
	febRow, janRow := rows[0], rows[1]
	if febRow.Year != 2024 || febRow.Month != 2 {
		t.Fatalf("expected 2024-02 first, got %d-%02d", febRow.Year, febRow.Month)
	}
	if febRow.IncidentCount != 15 {
		t.Errorf("feb count = %d, want 15", febRow.IncidentCount)
	}
	if febRow.MoMChange == nil || *febRow.MoMChange != 5 {
		t.Errorf("feb mom change = %v, want 5", febRow.MoMChange)
	}
	if febRow.MoMChangePercent == nil || *febRow.MoMChangePercent != 50.00 {
		t.Errorf("feb mom change pct = %v, want 50.00", febRow.MoMChangePercent)
	}
	if febRow.AvgResolutionHours == nil || *febRow.AvgResolutionHours != 8 {
		t.Errorf("feb avg hours = %v, want 8", febRow.AvgResolutionHours)
	}
	if janRow.MoMChange != nil || janRow.MoMChangePercent != nil || janRow.YoYChange != nil {
		t.Errorf("first month must have nil change fields, got %+v", janRow)
	}
}

func TestMonthlyTrendGapMonths(t *testing.T) {
	facilities, categories, analysts := baseDims()
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	snap.Incidents = append(snap.Incidents,
		incidentAt(1, time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), 2),
		incidentAt(2, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), 2),
	)

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.MonthlyTrend(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected gap month to be filled, got %d rows", len(rows))
	}
	febRow := rows[1]
	if febRow.Month != 2 || febRow.IncidentCount != 0 {
		t.Fatalf("middle row should be empty february, got %+v", febRow)
	}
	if febRow.MoMChange == nil || *febRow.MoMChange != -1 {
		t.Errorf("feb mom change = %v, want -1", febRow.MoMChange)
	}
	// March follows a zero month: absolute change defined, percent not.
	marRow := rows[0]
	if marRow.MoMChange == nil || *marRow.MoMChange != 1 {
		t.Errorf("mar mom change = %v, want 1", marRow.MoMChange)
	}
	if marRow.MoMChangePercent != nil {
		t.Errorf("mom change percent after a zero month must be nil, got %v", *marRow.MoMChangePercent)
	}
}

func TestMonthlyTrendYearOverYear(t *testing.T) {
	facilities, categories, analysts := baseDims()
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	id := int64(1)
	for i := 0; i < 4; i++ {
		snap.Incidents = append(snap.Incidents, incidentAt(id, time.Date(2023, 3, 1+i, 10, 0, 0, 0, time.UTC), 2))
		id++
	}
	for i := 0; i < 7; i++ {
		snap.Incidents = append(snap.Incidents, incidentAt(id, time.Date(2024, 3, 1+i, 10, 0, 0, 0, time.UTC), 2))
		id++
	}

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.MonthlyTrend(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	latest := rows[0]
	if latest.Year != 2024 || latest.Month != 3 {
		t.Fatalf("expected 2024-03 first, got %d-%02d", latest.Year, latest.Month)
	}
	if latest.YoYChange == nil || *latest.YoYChange != 3 {
		t.Errorf("yoy change = %v, want 3", latest.YoYChange)
	}
	// Total across all rows equals the incident count.
	sum := 0
	for _, row := range rows {
		sum += row.IncidentCount
	}
	if sum != len(snap.Incidents) {
		t.Errorf("row counts sum to %d, want %d", sum, len(snap.Incidents))
	}
}

func TestMonthlyTrendOpenIncidentPolicy(t *testing.T) {
	facilities, categories, analysts := baseDims()
	detected := testNow.Add(-10 * time.Hour)
	snap := &Snapshot{
		Facilities: facilities, Categories: categories, Analysts: analysts,
		Incidents: []IncidentRecord{openIncidentAt(1, detected)},
	}

	excl := newTestEngine(t, snap, nil)
	rows, err := excl.MonthlyTrend(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if rows[0].AvgResolutionHours != nil {
		t.Errorf("exclude policy: avg should be nil, got %v", *rows[0].AvgResolutionHours)
	}

	prov := newTestEngine(t, snap, func(o *Options) { o.OpenIncidents = ProvisionalNow })
	rows, err = prov.MonthlyTrend(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if rows[0].AvgResolutionHours == nil || *rows[0].AvgResolutionHours != 10 {
		t.Errorf("provisional policy: avg = %v, want 10", rows[0].AvgResolutionHours)
	}
}

func TestMonthlyTrendExcludesReversedResolution(t *testing.T) {
	facilities, categories, analysts := baseDims()
	detected := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	reversed := detected.Add(-3 * time.Hour)
	snap := &Snapshot{
		Facilities: facilities, Categories: categories, Analysts: analysts,
		Incidents: []IncidentRecord{
			{ID: 1, FacilityID: 1, CategoryID: 1, ReportedBy: 1, DetectedAt: detected,
				ResolvedAt: &reversed, Severity: SeverityLow, Status: StatusResolved},
			incidentAt(2, detected, 6),
		},
	}

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.MonthlyTrend(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if rows[0].IncidentCount != 2 {
		t.Errorf("count = %d, want 2 (reversed row still counted)", rows[0].IncidentCount)
	}
	if rows[0].AvgResolutionHours == nil || *rows[0].AvgResolutionHours != 6 {
		t.Errorf("avg = %v, want 6 (reversed row excluded from latency)", rows[0].AvgResolutionHours)
	}
}

func TestFacilityScorecard(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	for i := 0; i < 4; i++ {
		inc := incidentAt(int64(i+1), base.Add(time.Duration(i)*time.Hour), 10)
		inc.Cost = mustDecimal("250.00")
		snap.Incidents = append(snap.Incidents, inc)
	}
	open := openIncidentAt(5, base)
	open.Severity = SeverityCritical
	snap.Incidents = append(snap.Incidents, open)

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.FacilityScorecard(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("FacilityScorecard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected both active facilities, got %d rows", len(rows))
	}
	busy := rows[0]
	if busy.FacilityID != 1 {
		t.Fatalf("expected facility 1 ranked first by volume, got %d", busy.FacilityID)
	}
	if busy.TotalIncidents != 5 || busy.ClosedCount != 4 {
		t.Errorf("totals = %d/%d, want 5/4", busy.TotalIncidents, busy.ClosedCount)
	}
	if busy.ClosureRate == nil || *busy.ClosureRate != 80.00 {
		t.Errorf("closure rate = %v, want 80.00", busy.ClosureRate)
	}
	if busy.CriticalCount != 1 {
		t.Errorf("critical count = %d, want 1", busy.CriticalCount)
	}
	if busy.TotalCost == nil || !busy.TotalCost.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("total cost = %v, want 1000.00", busy.TotalCost)
	}
	if busy.VolumeRank != 1 {
		t.Errorf("volume rank = %d, want 1", busy.VolumeRank)
	}
	if busy.SpeedRank == nil || *busy.SpeedRank != 1 {
		t.Errorf("speed rank = %v, want 1", busy.SpeedRank)
	}

	idle := rows[1]
	if idle.FacilityID != 2 {
		t.Fatalf("expected zero-incident facility second, got %d", idle.FacilityID)
	}
	if idle.TotalIncidents != 0 || idle.ClosureRate != nil || idle.AvgResolutionHours != nil {
		t.Errorf("zero-incident facility should carry nil aggregates, got %+v", idle)
	}
	if idle.SpeedRank != nil {
		t.Errorf("facility with no closures must have nil speed rank, got %d", *idle.SpeedRank)
	}
	if idle.VolumeRank != 2 {
		t.Errorf("volume rank = %d, want 2", idle.VolumeRank)
	}
}

func TestFacilityScorecardDenseRanks(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	facilities := []Facility{
		{ID: 1, Name: "Alpha", Active: true},
		{ID: 2, Name: "Bravo", Active: true},
		{ID: 3, Name: "Charlie", Active: true},
	}
	categories := []Category{{ID: 1, Name: "Intrusion", Active: true}}
	analysts := []Analyst{{ID: 1, Name: "Avery", Active: true}}
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	id := int64(1)
	addIncidents := func(facilityID int64, n int) {
		for i := 0; i < n; i++ {
			inc := incidentAt(id, base.Add(time.Duration(i)*time.Minute), 5)
			inc.FacilityID = facilityID
			snap.Incidents = append(snap.Incidents, inc)
			id++
		}
	}
	addIncidents(1, 3)
	addIncidents(2, 3)
	addIncidents(3, 1)

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.FacilityScorecard(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("FacilityScorecard: %v", err)
	}
	if rows[0].VolumeRank != 1 || rows[1].VolumeRank != 1 {
		t.Errorf("tied facilities must share rank 1, got %d and %d", rows[0].VolumeRank, rows[1].VolumeRank)
	}
	if rows[2].VolumeRank != 2 {
		t.Errorf("dense ranking: next rank after a tie is 2, got %d", rows[2].VolumeRank)
	}
}

func TestCategoryPareto(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	id := int64(1)
	addIncidents := func(categoryID int64, n int) {
		for i := 0; i < n; i++ {
			inc := incidentAt(id, base.Add(time.Duration(i)*time.Minute), 5)
			inc.CategoryID = categoryID
			snap.Incidents = append(snap.Incidents, inc)
			id++
		}
	}
	addIncidents(1, 6)
	addIncidents(2, 4)
	addIncidents(3, 5) // inactive category, excluded

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.CategoryPareto(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("CategoryPareto: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("inactive category must be excluded, got %d rows", len(rows))
	}
	if rows[0].CategoryID != 1 || rows[0].IncidentCount != 6 {
		t.Fatalf("expected category 1 first with 6, got %+v", rows[0])
	}
	if rows[0].Percent != 60.00 || rows[0].CumulativePercent != 60.00 {
		t.Errorf("first row percent/cumulative = %v/%v, want 60/60", rows[0].Percent, rows[0].CumulativePercent)
	}
	if rows[1].CumulativeCount != 10 || rows[1].CumulativePercent != 100.00 {
		t.Errorf("last row cumulative = %d/%v, want 10/100", rows[1].CumulativeCount, rows[1].CumulativePercent)
	}
	prev := 0.0
	for _, row := range rows {
		if row.CumulativePercent < prev {
			t.Errorf("cumulative percent decreased at %+v", row)
		}
		prev = row.CumulativePercent
	}
}

func TestSeverityDistribution(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	id := int64(1)
	addIncidents := func(sev string, n int) {
		for i := 0; i < n; i++ {
			inc := incidentAt(id, base.Add(time.Duration(i)*time.Minute), 5)
			inc.Severity = sev
			snap.Incidents = append(snap.Incidents, inc)
			id++
		}
	}
	addIncidents(SeverityLow, 2)
	addIncidents(SeverityCritical, 1)
	addIncidents(SeverityHigh, 1)

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.SeverityDistribution(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("SeverityDistribution: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("zero severities must be skipped, got %d rows", len(rows))
	}
	if rows[0].Severity != SeverityCritical || rows[1].Severity != SeverityHigh || rows[2].Severity != SeverityLow {
		t.Errorf("rows not in urgency order: %+v", rows)
	}
	sum := 0.0
	for _, row := range rows {
		sum += row.PercentOfMonth
	}
	if sum != 100.00 {
		t.Errorf("month percentages sum to %v, want 100", sum)
	}
}

func TestPeakTimes(t *testing.T) {
	facilities, categories, analysts := baseDims()
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	// Three incidents Monday 09:00, one Tuesday 14:00.
	monday := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	tuesday := time.Date(2024, 5, 7, 14, 5, 0, 0, time.UTC)
	snap.Incidents = append(snap.Incidents,
		incidentAt(1, monday, 2),
		incidentAt(2, monday.Add(10*time.Minute), 4),
		incidentAt(3, monday.Add(20*time.Minute), 6),
		incidentAt(4, tuesday, 8),
	)

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.PeakTimes(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("PeakTimes: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(rows))
	}
	top := rows[0]
	if top.IncidentCount != 3 || top.HourOfDay != 9 || top.DayOfWeek != int(time.Monday) {
		t.Fatalf("busiest slot wrong: %+v", top)
	}
	if top.DayName != "Monday" {
		t.Errorf("day name = %q, want Monday", top.DayName)
	}
	if top.AvgResolutionHours == nil || *top.AvgResolutionHours != 4 {
		t.Errorf("slot avg = %v, want 4", top.AvgResolutionHours)
	}
}

func TestResolutionStats(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	for i, h := range []float64{2, 4, 6} {
		inc := incidentAt(int64(i+1), base.Add(time.Duration(i)*time.Hour), h)
		inc.Severity = SeverityHigh
		snap.Incidents = append(snap.Incidents, inc)
	}
	single := incidentAt(4, base, 12)
	single.CategoryID = 2
	snap.Incidents = append(snap.Incidents, single)
	snap.Incidents = append(snap.Incidents, openIncidentAt(5, base))

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.ResolutionStats(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ResolutionStats: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("open incidents must not create pairings, got %d rows", len(rows))
	}
	high := rows[0]
	if high.CategoryName != "Intrusion" || high.Severity != SeverityHigh {
		t.Fatalf("unexpected first pairing: %+v", high)
	}
	if high.MinHours != 2 || high.AvgHours != 4 || high.MaxHours != 6 {
		t.Errorf("min/avg/max = %v/%v/%v, want 2/4/6", high.MinHours, high.AvgHours, high.MaxHours)
	}
	if high.StdDevHours == nil || *high.StdDevHours != 2 {
		t.Errorf("sample stddev = %v, want 2", high.StdDevHours)
	}
	if rows[1].StdDevHours != nil {
		t.Errorf("single observation must have nil stddev, got %v", *rows[1].StdDevHours)
	}
}

func TestTopCostIncidents(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	withCost := func(id int64, cost string, hours float64) IncidentRecord {
		inc := incidentAt(id, base, hours)
		inc.Cost = mustDecimal(cost)
		return inc
	}
	zero := decimal.Zero
	free := incidentAt(4, base, 2)
	free.Cost = &zero
	snap.Incidents = append(snap.Incidents,
		withCost(1, "500.00", 10),
		withCost(2, "1500.00", 5),
		withCost(3, "1000.00", 4),
		free,
		incidentAt(5, base, 2), // no cost at all
	)

	eng := newTestEngine(t, snap, func(o *Options) { o.TopCostLimit = 2 })
	rows, err := eng.TopCostIncidents(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("TopCostIncidents: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("limit not applied, got %d rows", len(rows))
	}
	if rows[0].IncidentID != 2 || rows[1].IncidentID != 3 {
		t.Fatalf("order wrong: %d, %d", rows[0].IncidentID, rows[1].IncidentID)
	}
	if rows[0].Cost.LessThan(rows[1].Cost) {
		t.Errorf("costs not descending")
	}
	if rows[0].HoursToResolve != 5 {
		t.Errorf("hours to resolve = %v, want 5", rows[0].HoursToResolve)
	}
	if rows[0].CostPerHour == nil || !rows[0].CostPerHour.Equal(decimal.RequireFromString("300")) {
		t.Errorf("cost per hour = %v, want 300", rows[0].CostPerHour)
	}
}

func TestTopCostOpenIncidentUsesClock(t *testing.T) {
	facilities, categories, analysts := baseDims()
	open := openIncidentAt(1, testNow.Add(-4*time.Hour))
	open.Cost = mustDecimal("800.00")
	snap := &Snapshot{
		Facilities: facilities, Categories: categories, Analysts: analysts,
		Incidents: []IncidentRecord{open},
	}

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.TopCostIncidents(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("TopCostIncidents: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].HoursToResolve != 4 {
		t.Errorf("open incident hours = %v, want 4 from fixed clock", rows[0].HoursToResolve)
	}
	if rows[0].CostPerHour == nil || !rows[0].CostPerHour.Equal(decimal.RequireFromString("200")) {
		t.Errorf("cost per hour = %v, want 200", rows[0].CostPerHour)
	}
}

func TestAnalystPerformanceThreshold(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	id := int64(1)
	resolveFor := func(analystID int64, n int, hours float64) {
		for i := 0; i < n; i++ {
			inc := incidentAt(id, base.Add(time.Duration(i)*time.Hour), hours)
			inc.ReportedBy = 2
			inc.AssignedTo = &analystID
			snap.Incidents = append(snap.Incidents, inc)
			id++
		}
	}
	resolveFor(1, 5, 12) // at the bar
	resolveFor(2, 4, 3)  // under the bar

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.AnalystPerformance(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("AnalystPerformance: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("analyst under minimum must be excluded, got %d rows", len(rows))
	}
	row := rows[0]
	if row.AnalystID != 1 || row.AnalystName != "Avery" {
		t.Fatalf("wrong analyst: %+v", row)
	}
	if row.ResolvedCount != 5 || row.AvgResolutionHours != 12 {
		t.Errorf("resolved/avg = %d/%v, want 5/12", row.ResolvedCount, row.AvgResolutionHours)
	}
	if row.Within24hCount != 5 || row.Within24hPercent != 100.00 {
		t.Errorf("within 24h = %d/%v, want 5/100", row.Within24hCount, row.Within24hPercent)
	}
}

func TestAnalystPerformanceFallsBackToReporter(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	for i := 0; i < 5; i++ {
		inc := incidentAt(int64(i+1), base.Add(time.Duration(i)*time.Hour), 48)
		inc.ReportedBy = 2
		snap.Incidents = append(snap.Incidents, inc)
	}

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.AnalystPerformance(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("AnalystPerformance: %v", err)
	}
	if len(rows) != 1 || rows[0].AnalystID != 2 {
		t.Fatalf("unassigned incidents must attribute to the reporter, got %+v", rows)
	}
	if rows[0].Within24hCount != 0 || rows[0].Within24hPercent != 0 {
		t.Errorf("48h resolutions counted as within 24h: %+v", rows[0])
	}
}

func TestFilterValidation(t *testing.T) {
	facilities, categories, analysts := baseDims()
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	eng := newTestEngine(t, snap, nil)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := eng.MonthlyTrend(context.Background(), Filter{From: &from, To: &to})
	if !IsConfigurationError(err) {
		t.Fatalf("reversed range should be a configuration error, got %v", err)
	}
}

func TestFilterNarrowsSnapshot(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	other := incidentAt(2, base, 5)
	other.FacilityID = 2
	snap := &Snapshot{
		Facilities: facilities, Categories: categories, Analysts: analysts,
		Incidents: []IncidentRecord{incidentAt(1, base, 5), other},
	}

	eng := newTestEngine(t, snap, nil)
	rows, err := eng.CategoryPareto(context.Background(), Filter{FacilityID: 2})
	if err != nil {
		t.Fatalf("CategoryPareto: %v", err)
	}
	if len(rows) != 1 || rows[0].IncidentCount != 1 {
		t.Fatalf("facility filter not applied: %+v", rows)
	}
}

func TestIntegrityErrorOnOrphanReference(t *testing.T) {
	facilities, categories, analysts := baseDims()
	orphan := incidentAt(1, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 5)
	orphan.FacilityID = 99
	snap := &Snapshot{
		Facilities: facilities, Categories: categories, Analysts: analysts,
		Incidents: []IncidentRecord{orphan},
	}

	eng := newTestEngine(t, snap, nil)
	_, err := eng.MonthlyTrend(context.Background(), Filter{})
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}
	if integrity.Entity != "facility" || integrity.RefID != 99 {
		t.Errorf("unexpected error detail: %+v", integrity)
	}
}

func TestIntegrityErrorOnOrphanAssignee(t *testing.T) {
	facilities, categories, analysts := baseDims()
	orphanAssignee := int64(77)
	inc := incidentAt(1, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 5)
	inc.AssignedTo = &orphanAssignee
	snap := &Snapshot{
		Facilities: facilities, Categories: categories, Analysts: analysts,
		Incidents: []IncidentRecord{inc},
	}

	eng := newTestEngine(t, snap, nil)
	_, err := eng.AnalystPerformance(context.Background(), Filter{})
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError for orphaned assignee, got %v", err)
	}
	if integrity.Entity != "analyst" || integrity.RefID != orphanAssignee {
		t.Errorf("unexpected error detail: %+v", integrity)
	}
}

func TestSourceErrorWrapped(t *testing.T) {
	opts := DefaultOptions()
	opts.Clock = utils.FixedClock{At: testNow}
	boom := errors.New("connection refused")
	eng, err := NewEngine(&stubSource{err: boom}, opts, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	_, err = eng.MonthlyTrend(context.Background(), Filter{})
	var src *DataSourceError
	if !errors.As(err, &src) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("source error must unwrap to the cause")
	}
}

func TestNewEngineRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.TopCostLimit = -1
	if _, err := NewEngine(&stubSource{snap: &Snapshot{}}, opts, utils.NewNopLogger()); !IsConfigurationError(err) {
		t.Fatalf("negative limit must be rejected, got %v", err)
	}
	opts = DefaultOptions()
	opts.OpenIncidents = "midpoint"
	if _, err := NewEngine(&stubSource{snap: &Snapshot{}}, opts, utils.NewNopLogger()); !IsConfigurationError(err) {
		t.Fatalf("unknown policy must be rejected, got %v", err)
	}
}

func TestRunOverview(t *testing.T) {
	facilities, categories, analysts := baseDims()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{Facilities: facilities, Categories: categories, Analysts: analysts}
	for i := 0; i < 6; i++ {
		inc := incidentAt(int64(i+1), base.Add(time.Duration(i)*time.Hour), 8)
		inc.Cost = mustDecimal("100.00")
		snap.Incidents = append(snap.Incidents, inc)
	}

	eng := newTestEngine(t, snap, nil)
	overview, err := eng.RunOverview(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("RunOverview: %v", err)
	}
	if !overview.GeneratedAt.Equal(testNow) {
		t.Errorf("generated at = %v, want fixed clock %v", overview.GeneratedAt, testNow)
	}
	if len(overview.MonthlyTrend) != 1 {
		t.Errorf("monthly trend rows = %d, want 1", len(overview.MonthlyTrend))
	}
	if len(overview.FacilityScorecard) != 2 {
		t.Errorf("scorecard rows = %d, want 2", len(overview.FacilityScorecard))
	}
	if len(overview.TopCostIncidents) != 6 {
		t.Errorf("top cost rows = %d, want 6", len(overview.TopCostIncidents))
	}
	if len(overview.AnalystPerformance) != 1 {
		t.Errorf("analyst rows = %d, want 1", len(overview.AnalystPerformance))
	}
}
