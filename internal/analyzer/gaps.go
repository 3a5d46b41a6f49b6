package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// GapOptions controls gap detection.
type GapOptions struct {
	MinGapPct       float64 // minimum gap size as a percentage of prev close
	IncludeBodyGaps bool    // also detect open-vs-prev-close gaps
}

// DefaultGapOptions returns the default gap detection parameters.
func DefaultGapOptions() GapOptions {
	return GapOptions{MinGapPct: 0.5, IncludeBodyGaps: true}
}

// gapTypeWeights feed the severity score; breakaway gaps matter most.
var gapTypeWeights = map[model.GapType]float64{
	model.GapBreakaway:  3.0,
	model.GapRunaway:    2.5,
	model.GapExhaustion: 1.5,
	model.GapCommon:     1.0,
}

// DetectGaps scans consecutive bar pairs for price gaps.
//
// Wick gaps (no overlap between bars) are the classic definition; body gaps
// compare the open against the previous close and catch gaps where wicks
// overlap but bodies don't. Fewer than two bars yields no gaps, not an error.
func DetectGaps(bars []model.Bar, opts GapOptions) []model.Gap {
	if len(bars) < 2 {
		return nil
	}

	var gaps []model.Gap
	for i := 1; i < len(bars); i++ {
		prev, curr := bars[i-1], bars[i]

		if prev.Close == 0 {
			continue
		}

		switch {
		case curr.Low > prev.High:
			// Wick gap up
			size := curr.Low - prev.High
			sizePct := size / prev.Close * 100
			if sizePct >= opts.MinGapPct {
				gaps = append(gaps, buildGap(bars, i, prev.High, curr.Low, size, sizePct, model.GapUp))
			}
		case curr.High < prev.Low:
			// Wick gap down
			size := prev.Low - curr.High
			sizePct := size / prev.Close * 100
			if sizePct >= opts.MinGapPct {
				gaps = append(gaps, buildGap(bars, i, curr.High, prev.Low, size, sizePct, model.GapDown))
			}
		case opts.IncludeBodyGaps:
			bodyGap := curr.Open - prev.Close
			bodyGapPct := math.Abs(bodyGap) / prev.Close * 100
			if bodyGapPct < opts.MinGapPct {
				continue
			}
			if bodyGap > 0 {
				gaps = append(gaps, buildGap(bars, i, prev.Close, curr.Open, bodyGap, bodyGapPct, model.GapUp))
			} else {
				gaps = append(gaps, buildGap(bars, i, curr.Open, prev.Close, -bodyGap, bodyGapPct, model.GapDown))
			}
		}
	}

	up, unfilled := 0, 0
	for _, g := range gaps {
		if g.Direction == model.GapUp {
			up++
		}
		if g.Unfilled() {
			unfilled++
		}
	}
	log.Info().
		Int("total", len(gaps)).
		Int("up", up).
		Int("down", len(gaps)-up).
		Int("unfilled", unfilled).
		Float64("min_gap_pct", opts.MinGapPct).
		Msg("gap detection complete")

	return gaps
}

func buildGap(bars []model.Bar, idx int, gapLow, gapHigh, size, sizePct float64, dir model.GapDirection) model.Gap {
	filled, fillPct, fillDate := checkFill(bars, idx, gapLow, gapHigh, dir)
	barsSince := len(bars) - 1 - idx
	gapType := classifyGap(bars, idx, sizePct)
	return model.Gap{
		Date:      bars[idx].Time,
		Direction: dir,
		GapLow:    gapLow,
		GapHigh:   gapHigh,
		Size:      size,
		SizePct:   sizePct,
		GapType:   gapType,
		Filled:    filled,
		FillPct:   fillPct,
		FillDate:  fillDate,
		BarsSince: barsSince,
		Severity:  gapSeverity(sizePct, gapType, filled, barsSince, len(bars)),
	}
}

// checkFill scans bars after the gap for full or partial fills. A gap up
// fills when price trades down to gap_low; a gap down fills when price
// trades up to gap_high. A zero-width gap counts as immediately filled.
func checkFill(bars []model.Bar, gapIdx int, gapLow, gapHigh float64, dir model.GapDirection) (bool, float64, time.Time) {
	gapSize := gapHigh - gapLow
	if gapSize == 0 {
		return true, 1.0, time.Time{}
	}

	maxFill := 0.0
	var fillDate time.Time
	for j := gapIdx + 1; j < len(bars); j++ {
		if dir == model.GapUp {
			if bars[j].Low <= gapLow {
				return true, 1.0, bars[j].Time
			}
			if pen := gapHigh - bars[j].Low; pen > 0 && pen/gapSize > maxFill {
				maxFill = pen / gapSize
				fillDate = bars[j].Time
			}
		} else {
			if bars[j].High >= gapHigh {
				return true, 1.0, bars[j].Time
			}
			if pen := bars[j].High - gapLow; pen > 0 && pen/gapSize > maxFill {
				maxFill = pen / gapSize
				fillDate = bars[j].Time
			}
		}
	}
	if maxFill > 1.0 {
		maxFill = 1.0
	}
	return maxFill >= 1.0, maxFill, fillDate
}

// classifyGap types a gap from the price/volume context preceding it.
// With fewer than 5 bars of lookback every gap is common.
func classifyGap(bars []model.Bar, gapIdx int, sizePct float64) model.GapType {
	lookback := gapIdx
	if lookback > 20 {
		lookback = 20
	}
	if lookback < 5 {
		return model.GapCommon
	}
	window := bars[gapIdx-lookback : gapIdx]

	volumeSpike := false
	if hasVolume(bars) {
		if avg := meanVolume(window); avg > 0 && bars[gapIdx].HasVolume() {
			volumeSpike = bars[gapIdx].Volume > avg*1.5
		}
	}

	absChange := math.Abs(pctChange(window[0].Close, window[len(window)-1].Close))

	hiMax, loMin, closeSum := window[0].High, window[0].Low, 0.0
	for _, b := range window {
		if b.High > hiMax {
			hiMax = b.High
		}
		if b.Low < loMin {
			loMin = b.Low
		}
		closeSum += b.Close
	}
	avgClose := closeSum / float64(len(window))
	inConsolidation := avgClose > 0 && (hiMax-loMin)/avgClose*100 < 15
	trendExtended := absChange > 20

	switch {
	case inConsolidation && volumeSpike:
		return model.GapBreakaway
	case trendExtended && !volumeSpike:
		return model.GapExhaustion
	case absChange > 10 && volumeSpike:
		return model.GapRunaway
	case sizePct < 3:
		return model.GapCommon
	case volumeSpike && absChange > 5:
		return model.GapBreakaway
	default:
		return model.GapCommon
	}
}

// gapSeverity scores a gap 1-10 from size, type, fill status, and recency.
func gapSeverity(sizePct float64, gapType model.GapType, filled bool, barsSince, totalBars int) int {
	score := 0.0

	switch {
	case sizePct >= 10:
		score += 3.0
	case sizePct >= 5:
		score += 2.0
	case sizePct >= 3:
		score += 1.5
	default:
		score += 1.0
	}

	if w, ok := gapTypeWeights[gapType]; ok {
		score += w
	} else {
		score += 1.0
	}

	if filled {
		score += 0.5
	} else {
		score += 2.0
	}

	if totalBars > 0 {
		score += (1.0 - float64(barsSince)/float64(totalBars)) * 2.0
	}

	return clampRound(score, 1, 10)
}

// PrioritizeGaps orders gaps by significance: unfilled first, then by
// severity, then by size.
func PrioritizeGaps(gaps []model.Gap) []model.Gap {
	out := make([]model.Gap, len(gaps))
	copy(out, gaps)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Unfilled() != b.Unfilled() {
			return a.Unfilled()
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		return a.SizePct > b.SizePct
	})
	return out
}

// UnfilledGaps filters to gaps price has not yet closed.
func UnfilledGaps(gaps []model.Gap) []model.Gap {
	var out []model.Gap
	for _, g := range gaps {
		if g.Unfilled() {
			out = append(out, g)
		}
	}
	return out
}

// SummarizeGaps aggregates gap results. An empty input produces a
// zero-valued summary, not an error.
func SummarizeGaps(gaps []model.Gap) model.GapSummary {
	summary := model.GapSummary{
		ByType:      map[string]int{},
		ByDirection: map[string]int{"up": 0, "down": 0},
		Gaps:        []model.Gap{},
	}
	if len(gaps) == 0 {
		return summary
	}

	prioritized := PrioritizeGaps(gaps)
	unfilled := UnfilledGaps(gaps)

	for _, g := range gaps {
		summary.ByType[string(g.GapType)]++
		summary.ByDirection[string(g.Direction)]++
	}
	summary.Total = len(gaps)
	summary.Unfilled = len(unfilled)
	summary.Gaps = prioritized
	if len(unfilled) > 0 {
		top := prioritized[0]
		summary.LargestUnfilled = &top
	}
	return summary
}
