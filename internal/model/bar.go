package model

import (
	"math"
	"time"
)

// Bar represents a single OHLCV candlestick.
// Volume is NaN when the source data carries no volume column.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// HasVolume reports whether the bar carries a volume value.
func (b Bar) HasVolume() bool {
	return !math.IsNaN(b.Volume)
}

// Series holds an ordered bar sequence for one symbol and timeframe.
// Bars are sorted ascending by time with unique timestamps; the ingest
// package establishes that invariant before analyzers run.
type Series struct {
	Symbol    string
	Timeframe string
	Bars      []Bar
}

// LastClose returns the close of the final bar, or 0 for an empty series.
func (s Series) LastClose() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// HasVolume reports whether any bar in the series carries volume.
func (s Series) HasVolume() bool {
	for _, b := range s.Bars {
		if b.HasVolume() {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isoTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
