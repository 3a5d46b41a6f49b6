package analyzer

import (
	"math"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// Shared numeric primitives used by all three analyzers. Every guard here is
// a defensive no-op: empty windows and zero denominators yield neutral
// values instead of faults.

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}

// meanVolume averages bar volume, skipping bars with no volume data.
// Returns 0 when no bar carries volume.
func meanVolume(bars []model.Bar) float64 {
	sum, n := 0.0, 0
	for _, b := range bars {
		if b.HasVolume() {
			sum += b.Volume
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func hasVolume(bars []model.Bar) bool {
	for _, b := range bars {
		if b.HasVolume() {
			return true
		}
	}
	return false
}

// pctChange returns the percent change from one price to another.
func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// clampRound rounds a raw score and clamps it into [lo, hi].
func clampRound(score float64, lo, hi int) int {
	v := int(math.Round(score))
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// tail returns the trailing n bars (the whole slice when shorter).
func tail(bars []model.Bar, n int) []model.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
