package learning

import (
	"fmt"
	"time"
)

// Hour is an hour-of-day index, guaranteed to be in [0,23] by construction.
type Hour uint8

// NewHour validates an hour-of-day value from an untrusted source
// (API query parameters, stored rows).
func NewHour(h int) (Hour, error) {
	if h < 0 || h > 23 {
		return 0, fmt.Errorf("hour out of range: %d", h)
	}
	return Hour(h), nil
}

// HourOf returns the hour-of-day for a timestamp.
func HourOf(t time.Time) Hour {
	return Hour(t.Hour())
}

// Season is a meteorological season index: 0=winter 1=spring 2=summer 3=fall.
type Season uint8

const (
	SeasonWinter Season = iota
	SeasonSpring
	SeasonSummer
	SeasonFall

	numSeasons = 4
)

var seasonNames = [numSeasons]string{"winter", "spring", "summer", "fall"}

func (s Season) String() string {
	if int(s) < len(seasonNames) {
		return seasonNames[s]
	}
	return fmt.Sprintf("season(%d)", uint8(s))
}

// NewSeason validates a season index from an untrusted source.
func NewSeason(s int) (Season, error) {
	if s < 0 || s >= numSeasons {
		return 0, fmt.Errorf("season out of range: %d", s)
	}
	return Season(s), nil
}

// SeasonForMonth maps a calendar month to its meteorological season:
// Dec-Feb winter, Mar-May spring, Jun-Aug summer, Sep-Nov fall.
func SeasonForMonth(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonFall
	}
}

// PatternCell holds the learned colony rhythm for one (hour, season) slot.
type PatternCell struct {
	// ActivityLevel is normalized colony activity in [0,1].
	ActivityLevel float64 `json:"activity_level"`
	// TempOffset and HumidityOffset are the typical deviations from the
	// overall baseline mean during this slot.
	TempOffset     float64 `json:"temp_offset"`
	HumidityOffset float64 `json:"humidity_offset"`
	SampleCount    uint32  `json:"sample_count"`
}

// PatternGrid tracks the colony's daily rhythm per hour and season.
// Lookups are keyed by validated Hour and Season values, so indexing
// can never go out of bounds.
type PatternGrid struct {
	cells [24][numSeasons]PatternCell
}

// NewPatternGrid returns a grid initialized to medium activity and
// zero offsets, the neutral prior before any samples arrive.
func NewPatternGrid() PatternGrid {
	var g PatternGrid
	g.reset()
	return g
}

func (g *PatternGrid) reset() {
	for h := range g.cells {
		for s := range g.cells[h] {
			g.cells[h][s] = PatternCell{ActivityLevel: 0.5}
		}
	}
}

// At returns the cell for the given slot.
func (g *PatternGrid) At(h Hour, s Season) PatternCell {
	return g.cells[h][s]
}

// cellRate is the per-cell adaptation rate: fast while the cell has few
// samples, converging toward a slow floor as history accumulates.
func cellRate(sampleCount uint32) float64 {
	r := 5.0 / (float64(sampleCount) + 10.0)
	if r > 0.5 {
		r = 0.5
	}
	return r
}

// Update blends one observation into the slot's cell. tempDelta and
// humidityDelta are deviations from the current baseline means.
func (g *PatternGrid) Update(h Hour, s Season, activity, tempDelta, humidityDelta float64) {
	c := &g.cells[h][s]
	rate := cellRate(c.SampleCount)

	c.ActivityLevel = blend(c.ActivityLevel, activity, rate)
	c.TempOffset = blend(c.TempOffset, tempDelta, rate)
	c.HumidityOffset = blend(c.HumidityOffset, humidityDelta, rate)
	c.SampleCount++
}

// Cells returns a copy of the full grid, indexed [hour][season].
func (g *PatternGrid) Cells() [24][numSeasons]PatternCell {
	return g.cells
}
