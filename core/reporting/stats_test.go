package reporting

import (
	"testing"
	"time"
)

func TestSampleStdDev(t *testing.T) {
	if got := sampleStdDev([]float64{5}); got != nil {
		t.Errorf("one observation should be nil, got %v", *got)
	}
	if got := sampleStdDev(nil); got != nil {
		t.Errorf("empty input should be nil, got %v", *got)
	}
	got := sampleStdDev([]float64{2, 4, 6})
	if got == nil || *got != 2 {
		t.Errorf("stddev = %v, want 2", got)
	}
}

func TestResolutionHoursPolicies(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	detected := now.Add(-6 * time.Hour)
	resolved := detected.Add(2 * time.Hour)
	closed := IncidentRecord{DetectedAt: detected, ResolvedAt: &resolved, Status: StatusResolved}
	open := IncidentRecord{DetectedAt: detected, Status: StatusOpen}

	if h := resolutionHours(closed, ExcludeOpen, now); h == nil || *h != 2 {
		t.Errorf("closed incident hours = %v, want 2", h)
	}
	if h := resolutionHours(open, ExcludeOpen, now); h != nil {
		t.Errorf("exclude policy must drop open incidents, got %v", *h)
	}
	if h := resolutionHours(open, ProvisionalNow, now); h == nil || *h != 6 {
		t.Errorf("provisional hours = %v, want 6", h)
	}

	reversed := detected.Add(-1 * time.Hour)
	bad := IncidentRecord{DetectedAt: detected, ResolvedAt: &reversed, Status: StatusResolved}
	if h := resolutionHours(bad, ExcludeOpen, now); h != nil {
		t.Errorf("reversed resolution must be excluded, got %v", *h)
	}
	if h := closedResolutionHours(bad); h != nil {
		t.Errorf("reversed resolution must be excluded from closed stats, got %v", *h)
	}
	terminalNoDate := IncidentRecord{DetectedAt: detected, Status: StatusClosed}
	if h := closedResolutionHours(terminalNoDate); h != nil {
		t.Errorf("terminal without date has no latency, got %v", *h)
	}
}
