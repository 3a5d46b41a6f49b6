package analyzer

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// ZoneOptions controls supply/demand zone identification.
type ZoneOptions struct {
	MinMovePct        float64 // minimum single-bar move to count as explosive
	ConsolidationBars int     // maximum bars in a base
	VolumeThreshold   float64 // multiple of base volume for confirmation
}

// DefaultZoneOptions returns the default zone parameters.
func DefaultZoneOptions() ZoneOptions {
	return ZoneOptions{MinMovePct: 3.0, ConsolidationBars: 5, VolumeThreshold: 1.5}
}

// zonePatternWeights feed the strength score; reversal patterns beat
// continuations.
var zonePatternWeights = map[model.ZonePattern]float64{
	model.PatternDBR: 2.0,
	model.PatternRBD: 2.0,
	model.PatternRBR: 1.5,
	model.PatternDBD: 1.5,
}

// IdentifyZones finds supply and demand zones: an explosive single-bar move
// marks institutional interest, and the consolidation base preceding it
// becomes the zone. Requires at least 5 bars; fewer yields no zones.
func IdentifyZones(bars []model.Bar, opts ZoneOptions) []model.Zone {
	if len(bars) < 5 {
		return nil
	}

	movePct := make([]float64, len(bars))
	moveDir := make([]int, len(bars))
	for i, b := range bars {
		if b.Open != 0 {
			movePct[i] = math.Abs(b.Close-b.Open) / b.Open * 100
		}
		if b.Close > b.Open {
			moveDir[i] = 1
		} else {
			moveDir[i] = -1
		}
	}

	var zones []model.Zone
	for p := 2; p < len(bars); p++ {
		if movePct[p] < opts.MinMovePct {
			continue
		}

		baseStart, baseEnd := findBase(bars, movePct, p, opts.ConsolidationBars)
		base := bars[baseStart : baseEnd+1]

		zoneLow, zoneHigh := base[0].Low, base[0].High
		for _, b := range base {
			if b.Low < zoneLow {
				zoneLow = b.Low
			}
			if b.High > zoneHigh {
				zoneHigh = b.High
			}
		}

		zoneType, pattern := classifyZone(bars, baseStart, moveDir[p])

		volumeConfirmed := false
		if bars[p].HasVolume() {
			if baseAvg := meanVolume(base); baseAvg > 0 {
				volumeConfirmed = bars[p].Volume > baseAvg*opts.VolumeThreshold
			}
		}

		fresh, testCount := zoneFreshness(bars, p, zoneLow, zoneHigh)

		widthPct := 0.0
		if mid := (zoneHigh + zoneLow) / 2; mid > 0 {
			widthPct = (zoneHigh - zoneLow) / mid * 100
		}

		zones = append(zones, model.Zone{
			ZoneType:        zoneType,
			Pattern:         pattern,
			PriceLow:        zoneLow,
			PriceHigh:       zoneHigh,
			StartDate:       bars[baseStart].Time,
			EndDate:         bars[baseEnd].Time,
			Strength:        zoneStrength(movePct[p], volumeConfirmed, fresh, testCount, pattern, widthPct),
			Fresh:           fresh,
			TestCount:       testCount,
			VolumeConfirmed: volumeConfirmed,
			MoveSizePct:     movePct[p],
		})
	}

	zones = dedupeZones(zones)
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Strength > zones[j].Strength })

	demand, freshCount := 0, 0
	for _, z := range zones {
		if z.ZoneType == model.ZoneDemand {
			demand++
		}
		if z.Fresh {
			freshCount++
		}
	}
	log.Info().
		Int("total", len(zones)).
		Int("demand", demand).
		Int("supply", len(zones)-demand).
		Int("fresh", freshCount).
		Msg("supply/demand zone identification complete")

	return zones
}

// findBase walks backward from the explosive bar collecting contiguous
// narrow-range bars (range below 0.7x the explosive move). When no bar
// qualifies the base falls back to the single bar before the explosion.
func findBase(bars []model.Bar, movePct []float64, explosivePos, maxBars int) (start, end int) {
	end = explosivePos - 1
	start = end

	limit := end - maxBars + 1
	if limit < 0 {
		limit = 0
	}
	qualified := false
	for i := end; i >= limit; i-- {
		mid := (bars[i].High + bars[i].Low) / 2
		if mid == 0 {
			break
		}
		rangePct := (bars[i].High - bars[i].Low) / mid * 100
		if rangePct >= movePct[explosivePos]*0.7 {
			break
		}
		start = i
		qualified = true
	}
	if !qualified {
		start = end
	}
	return start, end
}

// classifyZone determines the zone type and four-letter pattern from the
// explosive direction and the move leading into the base.
func classifyZone(bars []model.Bar, baseStart, explosiveDir int) (model.ZoneType, model.ZonePattern) {
	preDir := preMoveDirection(bars, baseStart)
	if explosiveDir > 0 {
		if preDir > 0 {
			return model.ZoneDemand, model.PatternRBR
		}
		return model.ZoneDemand, model.PatternDBR
	}
	if preDir < 0 {
		return model.ZoneSupply, model.PatternDBD
	}
	return model.ZoneSupply, model.PatternRBD
}

// preMoveDirection compares the close at the base start with the close up
// to 5 bars earlier: +1 rallying in, -1 dropping in, 0 unknown.
func preMoveDirection(bars []model.Bar, baseStart int) int {
	lookback := baseStart
	if lookback > 5 {
		lookback = 5
	}
	if lookback < 1 {
		return 0
	}
	pre := bars[baseStart-lookback].Close
	at := bars[baseStart].Close
	switch {
	case at > pre:
		return 1
	case at < pre:
		return -1
	default:
		return 0
	}
}

// zoneFreshness scans forward from the explosive bar; every later bar whose
// range overlaps the zone counts as a test. A zone never revisited is fresh.
func zoneFreshness(bars []model.Bar, explosivePos int, zoneLow, zoneHigh float64) (fresh bool, testCount int) {
	for i := explosivePos + 1; i < len(bars); i++ {
		if bars[i].Low <= zoneHigh && bars[i].High >= zoneLow {
			testCount++
		}
	}
	return testCount == 0, testCount
}

// zoneStrength scores a zone 1-10: bigger moves, volume confirmation,
// freshness, reversal patterns, and tight bases all add strength.
func zoneStrength(moveSizePct float64, volumeConfirmed, fresh bool, testCount int, pattern model.ZonePattern, widthPct float64) int {
	score := 0.0

	switch {
	case moveSizePct >= 8:
		score += 3.0
	case moveSizePct >= 5:
		score += 2.0
	case moveSizePct >= 3:
		score += 1.5
	default:
		score += 1.0
	}

	if volumeConfirmed {
		score += 2.0
	}

	if fresh {
		score += 2.0
	} else if testCount <= 1 {
		score += 1.0
	}
	// Tested twice or more: no freshness points.

	if w, ok := zonePatternWeights[pattern]; ok {
		score += w
	} else {
		score += 1.0
	}

	if widthPct < 2 {
		score += 1.0
	} else if widthPct < 5 {
		score += 0.5
	}

	return clampRound(score, 1, 10)
}

// dedupeZones drops zones overlapping a stronger zone by more than half the
// narrower zone's width.
func dedupeZones(zones []model.Zone) []model.Zone {
	if len(zones) <= 1 {
		return zones
	}
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].PriceLow < zones[j].PriceLow })

	result := []model.Zone{zones[0]}
	for _, z := range zones[1:] {
		prev := &result[len(result)-1]
		overlap := math.Min(prev.PriceHigh, z.PriceHigh) - math.Max(prev.PriceLow, z.PriceLow)
		minWidth := math.Min(prev.Width(), z.Width())
		if minWidth > 0 && overlap/minWidth > 0.5 {
			if z.Strength > prev.Strength {
				result[len(result)-1] = z
			}
		} else {
			result = append(result, z)
		}
	}
	return result
}

// SummarizeZones builds the zone summary: the nearest demand zone below and
// supply zone above the current price, plus all fresh zones.
func SummarizeZones(zones []model.Zone, currentPrice float64) model.ZoneSummary {
	summary := model.ZoneSummary{
		CurrentPrice: currentPrice,
		TotalZones:   len(zones),
		DemandZones:  []model.Zone{},
		SupplyZones:  []model.Zone{},
		FreshZones:   []model.Zone{},
	}

	for _, z := range zones {
		if z.ZoneType == model.ZoneDemand {
			summary.DemandZones = append(summary.DemandZones, z)
		} else {
			summary.SupplyZones = append(summary.SupplyZones, z)
		}
		if z.Fresh {
			summary.FreshZones = append(summary.FreshZones, z)
		}
	}

	sort.SliceStable(summary.DemandZones, func(i, j int) bool {
		return summary.DemandZones[i].PriceHigh > summary.DemandZones[j].PriceHigh
	})
	sort.SliceStable(summary.SupplyZones, func(i, j int) bool {
		return summary.SupplyZones[i].PriceLow < summary.SupplyZones[j].PriceLow
	})

	for _, z := range summary.DemandZones {
		if z.PriceHigh <= currentPrice {
			nearest := z
			summary.NearestDemand = &nearest
			break
		}
	}
	for _, z := range summary.SupplyZones {
		if z.PriceLow >= currentPrice {
			nearest := z
			summary.NearestSupply = &nearest
			break
		}
	}
	return summary
}
