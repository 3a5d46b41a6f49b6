package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LevelType tells which side of the current price a level sits on.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
	LevelBoth       LevelType = "both"
)

// LevelSource names the methodology that produced a level candidate.
type LevelSource string

const (
	SourceSwing       LevelSource = "swing"
	SourceVolume      LevelSource = "volume"
	SourceRoundNumber LevelSource = "round_number"
	SourceMACluster   LevelSource = "ma_cluster"
)

// SRLevel is a support or resistance level. The calculator re-derives every
// level from scratch on each call; nothing is carried across calls.
type SRLevel struct {
	Price         float64
	LevelType     LevelType
	Source        LevelSource
	Strength      int // 1-10
	StrengthScore int // 0-100 composite
	Touches       int
	Breaks        int
	LastTest      time.Time // zero when unknown
	DaysSinceTest int       // -1 when unknown
	ZoneLow       float64
	ZoneHigh      float64

	Timeframe            string
	IsConfluence         bool
	ConfluenceTimeframes []string
}

// ZoneWidth returns the width of the level's price zone.
func (l SRLevel) ZoneWidth() float64 { return l.ZoneHigh - l.ZoneLow }

// Status reports whether the level has held, been tested, or broken.
func (l SRLevel) Status() string {
	switch {
	case l.Breaks == 0:
		return "held"
	case l.Breaks >= l.Touches/2:
		return "broken"
	default:
		return "tested"
	}
}

func (l SRLevel) strengthLabel() string {
	switch {
	case l.Touches >= 6:
		return "strong"
	case l.Touches >= 3:
		return "moderate"
	default:
		return "weak"
	}
}

// Label renders a trader-friendly description like "Strong (7 touches)".
func (l SRLevel) Label() string {
	lbl := l.strengthLabel()
	return fmt.Sprintf("%s%s (%d touches)", strings.ToUpper(lbl[:1]), lbl[1:], l.Touches)
}

// MarshalJSON emits the wire format consumed by report renderers.
func (l SRLevel) MarshalJSON() ([]byte, error) {
	var days *int
	if l.DaysSinceTest >= 0 {
		d := l.DaysSinceTest
		days = &d
	}
	tfs := l.ConfluenceTimeframes
	if tfs == nil {
		tfs = []string{}
	}
	return json.Marshal(struct {
		Price                float64     `json:"price"`
		Type                 LevelType   `json:"type"`
		Source               LevelSource `json:"source"`
		Strength             int         `json:"strength"`
		StrengthScore        int         `json:"strength_score"`
		Touches              int         `json:"touches"`
		Breaks               int         `json:"breaks"`
		Status               string      `json:"status"`
		LastTest             *string     `json:"last_test"`
		DaysSinceTest        *int        `json:"days_since_test"`
		Label                string      `json:"label"`
		Zone                 [2]float64  `json:"zone"`
		Timeframe            string      `json:"timeframe"`
		IsConfluence         bool        `json:"is_confluence"`
		ConfluenceTimeframes []string    `json:"confluence_timeframes"`
	}{
		Price:                round2(l.Price),
		Type:                 l.LevelType,
		Source:               l.Source,
		Strength:             l.Strength,
		StrengthScore:        l.StrengthScore,
		Touches:              l.Touches,
		Breaks:               l.Breaks,
		Status:               l.Status(),
		LastTest:             isoTime(l.LastTest),
		DaysSinceTest:        days,
		Label:                l.Label(),
		Zone:                 [2]float64{round2(l.ZoneLow), round2(l.ZoneHigh)},
		Timeframe:            l.Timeframe,
		IsConfluence:         l.IsConfluence,
		ConfluenceTimeframes: tfs,
	})
}

// LevelSummary aggregates S/R analysis results across timeframes.
type LevelSummary struct {
	CurrentPrice       float64           `json:"current_price"`
	TotalLevels        int               `json:"total_levels"`
	SupportLevels      []SRLevel         `json:"support_levels"`
	ResistanceLevels   []SRLevel         `json:"resistance_levels"`
	NearestSupport     *SRLevel          `json:"nearest_support"`
	NearestResistance  *SRLevel          `json:"nearest_resistance"`
	KeyLevels          []SRLevel         `json:"key_levels"`
	MinorLevels        []SRLevel         `json:"minor_levels"`
	TimeframesAnalyzed []string          `json:"timeframes_analyzed"`
	LookbackPeriods    map[string]string `json:"lookback_periods"`
}
