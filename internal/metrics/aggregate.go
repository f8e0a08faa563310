package metrics

import (
	"fmt"
	"math"
)

// Change is a percentage delta. Defined is false when the baseline is zero;
// callers must branch on it instead of reading Percent.
type Change struct {
	Percent float64
	Defined bool
}

// PercentChange returns (current-previous)/previous*100 rounded to two
// decimals, or an undefined Change when previous is zero.
func PercentChange(current, previous float64) Change {
	if previous == 0 {
		return Change{}
	}
	return Change{Percent: round2((current - previous) / previous * 100), Defined: true}
}

func (c Change) String() string {
	if !c.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", c.Percent)
}

// Increase reports a defined, strictly positive change.
func (c Change) Increase() bool { return c.Defined && c.Percent > 0 }

// Aggregates are the derived totals of one series.
type Aggregates struct {
	CurrentTotal  float64
	PreviousTotal float64
	Change        Change
}

// Delta is the absolute difference of totals.
func (a Aggregates) Delta() float64 { return a.CurrentTotal - a.PreviousTotal }

func Aggregate(s Series) Aggregates {
	var a Aggregates
	for _, r := range s {
		a.CurrentTotal += r.Current
		a.PreviousTotal += r.Previous
	}
	a.Change = PercentChange(a.CurrentTotal, a.PreviousTotal)
	return a
}

// RowChange applies the same formula and zero guard to a single record.
func RowChange(r WeeklyRecord) Change {
	return PercentChange(r.Current, r.Previous)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
