package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"kestrel-sir/core/utils"
)

// SnapshotSource yields a consistent read snapshot of the incident store.
// Isolation is the store's concern; the engine only requires that the rows
// it receives do not change underneath it.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, f Filter) (*Snapshot, error)
}

// Engine computes the reporting operations. It holds no mutable state over
// its inputs, so reports may run concurrently against the same snapshot.
type Engine struct {
	source SnapshotSource
	opts   Options
	logger *utils.Logger
}

func NewEngine(source SnapshotSource, opts Options, logger *utils.Logger) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock()
	}
	return &Engine{source: source, opts: opts, logger: logger}, nil
}

// snapshotView is a filtered, join-verified working set for one report run.
type snapshotView struct {
	incidents  []IncidentRecord
	facilities map[int64]Facility
	categories map[int64]Category
	analysts   map[int64]Analyst
	now        time.Time
}

func (e *Engine) begin(ctx context.Context, f Filter) (context.Context, context.CancelFunc, *snapshotView, error) {
	if err := f.validate(); err != nil {
		return nil, nil, nil, err
	}
	cancel := context.CancelFunc(func() {})
	if e.opts.Deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.opts.Deadline)
	}
	snap, err := e.source.LoadSnapshot(ctx, f)
	if err != nil {
		cancel()
		return nil, nil, nil, &DataSourceError{Err: err}
	}
	view := &snapshotView{
		facilities: make(map[int64]Facility, len(snap.Facilities)),
		categories: make(map[int64]Category, len(snap.Categories)),
		analysts:   make(map[int64]Analyst, len(snap.Analysts)),
		now:        e.opts.Clock.Now(),
	}
	for _, fac := range snap.Facilities {
		view.facilities[fac.ID] = fac
	}
	for _, cat := range snap.Categories {
		view.categories[cat.ID] = cat
	}
	for _, an := range snap.Analysts {
		view.analysts[an.ID] = an
	}
	for i, inc := range snap.Incidents {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				cancel()
				return nil, nil, nil, err
			}
		}
		if !f.matches(inc) {
			continue
		}
		if _, ok := view.facilities[inc.FacilityID]; !ok {
			cancel()
			return nil, nil, nil, &DataIntegrityError{Entity: "facility", IncidentID: inc.ID, RefID: inc.FacilityID}
		}
		if _, ok := view.categories[inc.CategoryID]; !ok {
			cancel()
			return nil, nil, nil, &DataIntegrityError{Entity: "category", IncidentID: inc.ID, RefID: inc.CategoryID}
		}
		if _, ok := view.analysts[inc.ReportedBy]; !ok {
			cancel()
			return nil, nil, nil, &DataIntegrityError{Entity: "analyst", IncidentID: inc.ID, RefID: inc.ReportedBy}
		}
		if inc.AssignedTo != nil {
			if _, ok := view.analysts[*inc.AssignedTo]; !ok {
				cancel()
				return nil, nil, nil, &DataIntegrityError{Entity: "analyst", IncidentID: inc.ID, RefID: *inc.AssignedTo}
			}
		}
		view.incidents = append(view.incidents, inc)
	}
	return ctx, cancel, view, nil
}

// MonthlyTrend groups incidents by calendar month and folds month-over-month
// and year-over-year deltas over a gap-filled series. Rows come back most
// recent first.
func (e *Engine) MonthlyTrend(ctx context.Context, f Filter) ([]MonthlyTrendRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.monthlyTrend(ctx, view)
}

func (e *Engine) monthlyTrend(ctx context.Context, view *snapshotView) ([]MonthlyTrendRow, error) {
	buckets := map[monthKey]*monthBucket{}
	for _, inc := range view.incidents {
		key := monthOf(inc.DetectedAt)
		b := buckets[key]
		if b == nil {
			b = &monthBucket{}
			buckets[key] = b
		}
		b.count++
		switch inc.Severity {
		case SeverityCritical:
			b.criticalCount++
		case SeverityHigh:
			b.highCount++
		}
		if h := resolutionHours(inc, e.opts.OpenIncidents, view.now); h != nil {
			b.hours = append(b.hours, *h)
		}
	}
	if len(buckets) == 0 {
		return []MonthlyTrendRow{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var first, last monthKey
	started := false
	for key := range buckets {
		if !started {
			first, last = key, key
			started = true
			continue
		}
		if key.before(first) {
			first = key
		}
		if last.before(key) {
			last = key
		}
	}

	months := gapFilledMonths(first, last)
	counts := make(map[monthKey]int, len(months))
	for _, key := range months {
		if b := buckets[key]; b != nil {
			counts[key] = b.count
		} else {
			counts[key] = 0
		}
	}

	rows := make([]MonthlyTrendRow, 0, len(months))
	for i, key := range months {
		cnt := counts[key]
		row := MonthlyTrendRow{Year: key.Year, Month: key.Month, IncidentCount: cnt}
		if b := buckets[key]; b != nil {
			row.CriticalCount = b.criticalCount
			row.HighCount = b.highCount
			if avg := meanPtr(b.hours); avg != nil {
				r := round2(*avg)
				row.AvgResolutionHours = &r
			}
		}
		if i > 0 {
			prev := counts[months[i-1]]
			change := cnt - prev
			row.MoMChange = &change
			if prev != 0 {
				pct := round2(float64(change) / float64(prev) * 100)
				row.MoMChangePercent = &pct
			}
		}
		if yearAgo := key.minusYear(); !yearAgo.before(first) {
			if prevYear, ok := counts[yearAgo]; ok {
				change := cnt - prevYear
				row.YoYChange = &change
			}
		}
		rows = append(rows, row)
	}
	// Most recent first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// FacilityScorecard covers every active facility with left-join semantics:
// facilities without incidents appear with nil rate and averages.
func (e *Engine) FacilityScorecard(ctx context.Context, f Filter) ([]FacilityScorecardRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.facilityScorecard(ctx, view)
}

func (e *Engine) facilityScorecard(ctx context.Context, view *snapshotView) ([]FacilityScorecardRow, error) {
	type facAgg struct {
		total    int
		closed   int
		critical int
		hours    []float64
		cost     decimal.Decimal
		hasCost  bool
	}
	aggs := map[int64]*facAgg{}
	for _, inc := range view.incidents {
		fac := view.facilities[inc.FacilityID]
		if !fac.Active {
			continue
		}
		a := aggs[inc.FacilityID]
		if a == nil {
			a = &facAgg{}
			aggs[inc.FacilityID] = a
		}
		a.total++
		if inc.Severity == SeverityCritical {
			a.critical++
		}
		if h := closedResolutionHours(inc); h != nil {
			a.closed++
			a.hours = append(a.hours, *h)
		} else if IsTerminalStatus(inc.Status) {
			// Terminal without a usable resolution date still counts as
			// closed for the rate, just not for the latency average.
			a.closed++
		}
		if inc.Cost != nil {
			a.cost = a.cost.Add(*inc.Cost)
			a.hasCost = true
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]FacilityScorecardRow, 0, len(view.facilities))
	for _, fac := range view.facilities {
		if !fac.Active {
			continue
		}
		row := FacilityScorecardRow{FacilityID: fac.ID, FacilityName: fac.Name}
		if a := aggs[fac.ID]; a != nil {
			row.TotalIncidents = a.total
			row.ClosedCount = a.closed
			row.CriticalCount = a.critical
			if a.total > 0 {
				rate := round2(float64(a.closed) / float64(a.total) * 100)
				row.ClosureRate = &rate
			}
			if avg := meanPtr(a.hours); avg != nil {
				r := round2(*avg)
				row.AvgResolutionHours = &r
			}
			cost := a.cost
			row.TotalCost = &cost
		}
		rows = append(rows, row)
	}

	// Two independent dense ranks: volume (total desc) and speed (avg asc,
	// rankable only when an average exists).
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalIncidents != rows[j].TotalIncidents {
			return rows[i].TotalIncidents > rows[j].TotalIncidents
		}
		return rows[i].FacilityName < rows[j].FacilityName
	})
	rank := 0
	prevTotal := -1
	for i := range rows {
		if rows[i].TotalIncidents != prevTotal {
			rank++
			prevTotal = rows[i].TotalIncidents
		}
		rows[i].VolumeRank = rank
	}

	speedIdx := make([]int, 0, len(rows))
	for i := range rows {
		if rows[i].AvgResolutionHours != nil {
			speedIdx = append(speedIdx, i)
		}
	}
	sort.Slice(speedIdx, func(a, b int) bool {
		return *rows[speedIdx[a]].AvgResolutionHours < *rows[speedIdx[b]].AvgResolutionHours
	})
	rank = 0
	prevAvg := -1.0
	for _, i := range speedIdx {
		avg := *rows[i].AvgResolutionHours
		if avg != prevAvg {
			rank++
			prevAvg = avg
		}
		r := rank
		rows[i].SpeedRank = &r
	}
	return rows, nil
}

// CategoryPareto ranks active categories by incident count and accumulates
// the running share strictly after the descending order is established.
func (e *Engine) CategoryPareto(ctx context.Context, f Filter) ([]CategoryParetoRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.categoryPareto(ctx, view)
}

func (e *Engine) categoryPareto(ctx context.Context, view *snapshotView) ([]CategoryParetoRow, error) {
	counts := map[int64]int{}
	for _, inc := range view.incidents {
		if !view.categories[inc.CategoryID].Active {
			continue
		}
		counts[inc.CategoryID]++
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	rows := make([]CategoryParetoRow, 0, len(counts))
	for id, c := range counts {
		rows = append(rows, CategoryParetoRow{
			CategoryID:    id,
			CategoryName:  view.categories[id].Name,
			IncidentCount: c,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].IncidentCount != rows[j].IncidentCount {
			return rows[i].IncidentCount > rows[j].IncidentCount
		}
		return rows[i].CategoryName < rows[j].CategoryName
	})
	cum := 0
	for i := range rows {
		cum += rows[i].IncidentCount
		rows[i].Percent = round2(float64(rows[i].IncidentCount) / float64(total) * 100)
		rows[i].CumulativeCount = cum
		rows[i].CumulativePercent = round2(float64(cum) / float64(total) * 100)
	}
	return rows, nil
}

// SeverityDistribution reports, for each month, how incidents split across
// severities. Percentages are of that month's total, not the grand total.
func (e *Engine) SeverityDistribution(ctx context.Context, f Filter) ([]SeverityDistributionRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.severityDistribution(ctx, view)
}

func (e *Engine) severityDistribution(ctx context.Context, view *snapshotView) ([]SeverityDistributionRow, error) {
	type cell struct {
		key monthKey
		sev string
	}
	counts := map[cell]int{}
	monthTotals := map[monthKey]int{}
	for _, inc := range view.incidents {
		key := monthOf(inc.DetectedAt)
		counts[cell{key: key, sev: inc.Severity}]++
		monthTotals[key]++
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	months := make([]monthKey, 0, len(monthTotals))
	for key := range monthTotals {
		months = append(months, key)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].before(months[j]) })

	var rows []SeverityDistributionRow
	for _, key := range months {
		total := monthTotals[key]
		for _, sev := range SeverityOrder {
			c := counts[cell{key: key, sev: sev}]
			if c == 0 {
				continue
			}
			rows = append(rows, SeverityDistributionRow{
				Year:           key.Year,
				Month:          key.Month,
				Severity:       sev,
				IncidentCount:  c,
				PercentOfMonth: round2(float64(c) / float64(total) * 100),
			})
		}
	}
	return rows, nil
}

// PeakTimes buckets incidents by (hour of day, day of week) and surfaces the
// busiest windows first.
func (e *Engine) PeakTimes(ctx context.Context, f Filter) ([]PeakTimeRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.peakTimes(ctx, view)
}

func (e *Engine) peakTimes(ctx context.Context, view *snapshotView) ([]PeakTimeRow, error) {
	type slot struct {
		hour int
		dow  int
	}
	type agg struct {
		count int
		hours []float64
	}
	aggs := map[slot]*agg{}
	for _, inc := range view.incidents {
		s := slot{hour: inc.DetectedAt.Hour(), dow: int(inc.DetectedAt.Weekday())}
		a := aggs[s]
		if a == nil {
			a = &agg{}
			aggs[s] = a
		}
		a.count++
		if h := resolutionHours(inc, e.opts.OpenIncidents, view.now); h != nil {
			a.hours = append(a.hours, *h)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([]PeakTimeRow, 0, len(aggs))
	for s, a := range aggs {
		row := PeakTimeRow{
			HourOfDay:     s.hour,
			DayOfWeek:     s.dow,
			DayName:       time.Weekday(s.dow).String(),
			IncidentCount: a.count,
		}
		if avg := meanPtr(a.hours); avg != nil {
			r := round2(*avg)
			row.AvgResolutionHours = &r
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].IncidentCount != rows[j].IncidentCount {
			return rows[i].IncidentCount > rows[j].IncidentCount
		}
		if rows[i].DayOfWeek != rows[j].DayOfWeek {
			return rows[i].DayOfWeek < rows[j].DayOfWeek
		}
		return rows[i].HourOfDay < rows[j].HourOfDay
	})
	return rows, nil
}

// ResolutionStats summarizes closure latency per (category, severity) over
// closed incidents with a usable resolution date. Empty pairings are
// omitted, not reported as zero.
func (e *Engine) ResolutionStats(ctx context.Context, f Filter) ([]ResolutionStatsRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.resolutionStats(ctx, view)
}

func (e *Engine) resolutionStats(ctx context.Context, view *snapshotView) ([]ResolutionStatsRow, error) {
	type pairing struct {
		categoryID int64
		severity   string
	}
	groups := map[pairing][]float64{}
	for _, inc := range view.incidents {
		h := closedResolutionHours(inc)
		if h == nil {
			continue
		}
		p := pairing{categoryID: inc.CategoryID, severity: inc.Severity}
		groups[p] = append(groups[p], *h)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sevRank := map[string]int{}
	for i, sev := range SeverityOrder {
		sevRank[sev] = i
	}
	rows := make([]ResolutionStatsRow, 0, len(groups))
	for p, hours := range groups {
		minH, maxH := hours[0], hours[0]
		for _, h := range hours[1:] {
			if h < minH {
				minH = h
			}
			if h > maxH {
				maxH = h
			}
		}
		row := ResolutionStatsRow{
			CategoryID:   p.categoryID,
			CategoryName: view.categories[p.categoryID].Name,
			Severity:     p.severity,
			ClosedCount:  len(hours),
			MinHours:     round2(minH),
			AvgHours:     round2(mean(hours)),
			MaxHours:     round2(maxH),
		}
		if sd := sampleStdDev(hours); sd != nil {
			r := round2(*sd)
			row.StdDevHours = &r
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CategoryName != rows[j].CategoryName {
			return rows[i].CategoryName < rows[j].CategoryName
		}
		return sevRank[rows[i].Severity] < sevRank[rows[j].Severity]
	})
	return rows, nil
}

// TopCostIncidents returns the costliest incidents, strictly descending.
// Incidents without a positive cost never appear.
func (e *Engine) TopCostIncidents(ctx context.Context, f Filter) ([]TopCostIncidentRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.topCostIncidents(ctx, view)
}

func (e *Engine) topCostIncidents(ctx context.Context, view *snapshotView) ([]TopCostIncidentRow, error) {
	var costly []IncidentRecord
	for _, inc := range view.incidents {
		if inc.Cost == nil || !inc.Cost.IsPositive() {
			continue
		}
		costly = append(costly, inc)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(costly, func(i, j int) bool {
		cmp := costly[i].Cost.Cmp(*costly[j].Cost)
		if cmp != 0 {
			return cmp > 0
		}
		return costly[i].ID < costly[j].ID
	})
	limit := e.opts.TopCostLimit
	if limit > 0 && len(costly) > limit {
		costly = costly[:limit]
	}
	rows := make([]TopCostIncidentRow, 0, len(costly))
	for _, inc := range costly {
		var hours float64
		if hasValidResolution(inc) {
			hours = inc.ResolvedAt.Sub(inc.DetectedAt).Hours()
		} else if inc.ResolvedAt == nil && view.now.After(inc.DetectedAt) {
			hours = view.now.Sub(inc.DetectedAt).Hours()
		}
		row := TopCostIncidentRow{
			IncidentID:     inc.ID,
			FacilityName:   view.facilities[inc.FacilityID].Name,
			CategoryName:   view.categories[inc.CategoryID].Name,
			Severity:       inc.Severity,
			Status:         inc.Status,
			Cost:           *inc.Cost,
			HoursToResolve: round2(hours),
		}
		if hours > 0 {
			cph := inc.Cost.DivRound(decimal.NewFromFloat(hours), 2)
			row.CostPerHour = &cph
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AnalystPerformance covers analysts who resolved at least the configured
// minimum of closed incidents; anyone under the bar is excluded entirely.
func (e *Engine) AnalystPerformance(ctx context.Context, f Filter) ([]AnalystPerformanceRow, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return e.analystPerformance(ctx, view)
}

func (e *Engine) analystPerformance(ctx context.Context, view *snapshotView) ([]AnalystPerformanceRow, error) {
	groups := map[int64][]float64{}
	for _, inc := range view.incidents {
		h := closedResolutionHours(inc)
		if h == nil {
			continue
		}
		resolver := inc.ReportedBy
		if inc.AssignedTo != nil {
			resolver = *inc.AssignedTo
		}
		groups[resolver] = append(groups[resolver], *h)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([]AnalystPerformanceRow, 0, len(groups))
	for id, hours := range groups {
		if len(hours) < e.opts.AnalystMinResolved {
			continue
		}
		within := 0
		for _, h := range hours {
			if h <= 24 {
				within++
			}
		}
		rows = append(rows, AnalystPerformanceRow{
			AnalystID:          id,
			AnalystName:        view.analysts[id].Name,
			ResolvedCount:      len(hours),
			AvgResolutionHours: round2(mean(hours)),
			Within24hCount:     within,
			Within24hPercent:   round2(float64(within) / float64(len(hours)) * 100),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ResolvedCount != rows[j].ResolvedCount {
			return rows[i].ResolvedCount > rows[j].ResolvedCount
		}
		return rows[i].AnalystName < rows[j].AnalystName
	})
	return rows, nil
}

// RunOverview computes every report concurrently against one snapshot.
func (e *Engine) RunOverview(ctx context.Context, f Filter) (*Overview, error) {
	ctx, cancel, view, err := e.begin(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cancel()

	out := &Overview{GeneratedAt: view.now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { out.MonthlyTrend, err = e.monthlyTrend(gctx, view); return })
	g.Go(func() (err error) { out.FacilityScorecard, err = e.facilityScorecard(gctx, view); return })
	g.Go(func() (err error) { out.CategoryPareto, err = e.categoryPareto(gctx, view); return })
	g.Go(func() (err error) { out.SeverityDistribution, err = e.severityDistribution(gctx, view); return })
	g.Go(func() (err error) { out.PeakTimes, err = e.peakTimes(gctx, view); return })
	g.Go(func() (err error) { out.ResolutionStats, err = e.resolutionStats(gctx, view); return })
	g.Go(func() (err error) { out.TopCostIncidents, err = e.topCostIncidents(gctx, view); return })
	g.Go(func() (err error) { out.AnalystPerformance, err = e.analystPerformance(gctx, view); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
