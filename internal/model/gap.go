package model

import (
	"encoding/json"
	"time"
)

// GapDirection is the direction a price gap opened in.
type GapDirection string

const (
	GapUp   GapDirection = "up"
	GapDown GapDirection = "down"
)

// GapType classifies a gap by its market context.
type GapType string

const (
	GapCommon     GapType = "common"
	GapBreakaway  GapType = "breakaway"
	GapRunaway    GapType = "runaway"
	GapExhaustion GapType = "exhaustion"
)

// Gap represents a detected price gap. Gaps are immutable values: they are
// built once during detection and never updated afterwards.
type Gap struct {
	Date      time.Time
	Direction GapDirection
	GapLow    float64
	GapHigh   float64
	Size      float64
	SizePct   float64
	GapType   GapType
	Filled    bool
	FillPct   float64 // 0.0 - 1.0
	FillDate  time.Time // zero when price never re-entered the gap
	BarsSince int
	Severity  int // 1-10
}

// Unfilled reports whether the gap is still open.
func (g Gap) Unfilled() bool { return !g.Filled }

// Midpoint returns the center of the gap range.
func (g Gap) Midpoint() float64 { return (g.GapLow + g.GapHigh) / 2 }

// MarshalJSON emits the wire format consumed by report renderers.
func (g Gap) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date      string       `json:"date"`
		Direction GapDirection `json:"direction"`
		GapLow    float64      `json:"gap_low"`
		GapHigh   float64      `json:"gap_high"`
		Size      float64      `json:"size"`
		SizePct   float64      `json:"size_pct"`
		GapType   GapType      `json:"gap_type"`
		Filled    bool         `json:"filled"`
		FillPct   float64      `json:"fill_pct"`
		FillDate  *string      `json:"fill_date"`
		BarsSince int          `json:"bars_since"`
		Severity  int          `json:"severity"`
	}{
		Date:      g.Date.Format(time.RFC3339),
		Direction: g.Direction,
		GapLow:    round2(g.GapLow),
		GapHigh:   round2(g.GapHigh),
		Size:      round2(g.Size),
		SizePct:   round2(g.SizePct),
		GapType:   g.GapType,
		Filled:    g.Filled,
		FillPct:   round2(g.FillPct),
		FillDate:  isoTime(g.FillDate),
		BarsSince: g.BarsSince,
		Severity:  g.Severity,
	})
}

// GapSummary aggregates gap analysis results for one series.
type GapSummary struct {
	Total           int            `json:"total"`
	Unfilled        int            `json:"unfilled"`
	ByType          map[string]int `json:"by_type"`
	ByDirection     map[string]int `json:"by_direction"`
	LargestUnfilled *Gap           `json:"largest_unfilled"`
	Gaps            []Gap          `json:"gaps"`
}
