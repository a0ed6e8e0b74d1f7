package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kestrel-sir/config"
	"kestrel-sir/core/reporting"
	"kestrel-sir/core/utils"
)

// Refresher recomputes the full report overview on a cron schedule and keeps
// the latest result in memory for cheap serving. Reports are recomputed from
// scratch each run; nothing is incrementally maintained.
type Refresher struct {
	cfg    config.SchedulerConfig
	engine *reporting.Engine
	logger *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	latest  *reporting.Overview
	lastErr error
	lastRun time.Time
}

func NewRefresher(cfg config.SchedulerConfig, engine *reporting.Engine, logger *utils.Logger) *Refresher {
	return &Refresher{cfg: cfg, engine: engine, logger: logger}
}

func (r *Refresher) StartWithContext(ctx context.Context) {
	if r == nil || r.engine == nil || !r.cfg.Enabled {
		return
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	spec := r.cfg.CronSpec
	if spec == "" {
		spec = "@every 15m"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { r.refresh(ctx) }); err != nil {
		r.mu.Unlock()
		if r.logger != nil {
			r.logger.Errorf("report refresher: bad cron spec %q: %v", spec, err)
		}
		return
	}
	r.cron = c
	r.running = true
	r.mu.Unlock()

	c.Start()
	go r.refresh(ctx)
}

func (r *Refresher) StopWithContext(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	wasRunning := r.running
	r.running = false
	r.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	overview, err := r.engine.RunOverview(ctx, reporting.Filter{})
	r.mu.Lock()
	r.lastRun = time.Now().UTC()
	r.lastErr = err
	if err == nil {
		r.latest = overview
	}
	r.mu.Unlock()
	if err != nil {
		if r.logger != nil {
			r.logger.Errorf("report refresher: overview failed: %v", err)
		}
		return
	}
	if r.logger != nil {
		r.logger.Infof("report refresher: overview recomputed months=%d facilities=%d categories=%d",
			len(overview.MonthlyTrend), len(overview.FacilityScorecard), len(overview.CategoryPareto))
	}
}

// Latest returns the most recent overview, or nil if none has completed yet.
func (r *Refresher) Latest() (*reporting.Overview, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.lastRun, r.lastErr
}
