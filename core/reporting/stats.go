package reporting

import (
	"math"
	"time"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev returns nil for fewer than two observations, where the
// statistic is undefined.
func sampleStdDev(xs []float64) *float64 {
	n := len(xs)
	if n < 2 {
		return nil
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	return &sd
}

func meanPtr(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := mean(xs)
	return &m
}

// hasValidResolution is the single place the reversed-date policy lives:
// a resolution date earlier than detection violates store invariants and is
// treated as unusable, never as a negative duration.
func hasValidResolution(inc IncidentRecord) bool {
	return inc.ResolvedAt != nil && !inc.ResolvedAt.Before(inc.DetectedAt)
}

// resolutionHours returns the incident's resolution latency subject to the
// open-incident policy.
func resolutionHours(inc IncidentRecord, policy OpenIncidentPolicy, now time.Time) *float64 {
	if inc.ResolvedAt != nil {
		if !hasValidResolution(inc) {
			return nil
		}
		h := inc.ResolvedAt.Sub(inc.DetectedAt).Hours()
		return &h
	}
	if policy == ProvisionalNow {
		if now.Before(inc.DetectedAt) {
			return nil
		}
		h := now.Sub(inc.DetectedAt).Hours()
		return &h
	}
	return nil
}

// closedResolutionHours is the strict variant used by closure-side
// statistics: only terminal-status incidents with a valid resolution date
// qualify, regardless of the open-incident policy.
func closedResolutionHours(inc IncidentRecord) *float64 {
	if !IsTerminalStatus(inc.Status) || !hasValidResolution(inc) {
		return nil
	}
	h := inc.ResolvedAt.Sub(inc.DetectedAt).Hours()
	return &h
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
