package reporting

import "time"

// monthKey identifies one calendar month.
type monthKey struct {
	Year  int
	Month int
}

func monthOf(t time.Time) monthKey {
	return monthKey{Year: t.Year(), Month: int(t.Month())}
}

func (k monthKey) before(other monthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k monthKey) next() monthKey {
	if k.Month == 12 {
		return monthKey{Year: k.Year + 1, Month: 1}
	}
	return monthKey{Year: k.Year, Month: k.Month + 1}
}

func (k monthKey) minusYear() monthKey {
	return monthKey{Year: k.Year - 1, Month: k.Month}
}

// gapFilledMonths materializes every calendar month from first to last
// inclusive, in ascending order. Sparse months must exist as explicit
// zero-count entries before any lag is computed, otherwise a 12-period
// offset lands on the wrong month.
func gapFilledMonths(first, last monthKey) []monthKey {
	if last.before(first) {
		return nil
	}
	var out []monthKey
	for k := first; !last.before(k); k = k.next() {
		out = append(out, k)
	}
	return out
}

// monthBucket accumulates one month's incidents during the grouping pass.
type monthBucket struct {
	count         int
	criticalCount int
	highCount     int
	hours         []float64
}
