package utils

import "time"

func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock abstracts "now" so report computations that substitute the current
// time for unresolved incidents stay deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At.UTC() }
