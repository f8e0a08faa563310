package metrics

import (
	"fmt"
	"strings"
)

// Category is one independently tracked consumption resource.
type Category string

const (
	Energy Category = "energy"
	Water  Category = "water"
	Waste  Category = "waste"
)

var categories = []Category{Energy, Water, Waste}

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Energy, Water, Waste:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Title is the display name of the category.
func (c Category) Title() string {
	switch c {
	case Energy:
		return "Energy"
	case Water:
		return "Water"
	case Waste:
		return "Waste"
	}
	return string(c)
}

// Unit is the measurement unit shown next to totals.
func (c Category) Unit() string {
	switch c {
	case Energy:
		return "kWh"
	case Water:
		return "L"
	case Waste:
		return "kg"
	}
	return ""
}

// WeeklyRecord is one row of a series. Its identity is its index.
type WeeklyRecord struct {
	Period   string  `json:"period" validate:"required"`
	Current  float64 `json:"current" validate:"gte=0"`
	Previous float64 `json:"previous" validate:"gte=0"`
}

// Series is an ordered list of weekly records; insertion order is display
// order and duplicate periods are allowed.
type Series []WeeklyRecord

func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Snapshot is the unit of remote persistence.
type Snapshot struct {
	Energy Series `json:"energy"`
	Water  Series `json:"water"`
	Waste  Series `json:"waste"`
}

func (s Snapshot) Series(c Category) Series {
	switch c {
	case Energy:
		return s.Energy
	case Water:
		return s.Water
	case Waste:
		return s.Waste
	}
	return nil
}

// WithSeries returns a copy of s with the series for c replaced.
func (s Snapshot) WithSeries(c Category, series Series) Snapshot {
	out := s.Clone()
	switch c {
	case Energy:
		out.Energy = series.Clone()
	case Water:
		out.Water = series.Clone()
	case Waste:
		out.Waste = series.Clone()
	}
	return out
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Energy: s.Energy.Clone(),
		Water:  s.Water.Clone(),
		Waste:  s.Waste.Clone(),
	}
}

// Empty reports whether no category holds any record.
func (s Snapshot) Empty() bool {
	return len(s.Energy) == 0 && len(s.Water) == 0 && len(s.Waste) == 0
}

// DefaultSnapshot is the data shown before anything has been saved.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Energy: Series{
			{Period: "Week 1", Current: 120, Previous: 100},
			{Period: "Week 2", Current: 130, Previous: 110},
			{Period: "Week 3", Current: 115, Previous: 105},
			{Period: "Week 4", Current: 140, Previous: 120},
		},
		Water: Series{
			{Period: "Week 1", Current: 200, Previous: 180},
			{Period: "Week 2", Current: 210, Previous: 190},
			{Period: "Week 3", Current: 195, Previous: 175},
			{Period: "Week 4", Current: 220, Previous: 200},
		},
		Waste: Series{
			{Period: "Week 1", Current: 80, Previous: 75},
			{Period: "Week 2", Current: 85, Previous: 80},
			{Period: "Week 3", Current: 78, Previous: 72},
			{Period: "Week 4", Current: 90, Previous: 85},
		},
	}
}
