package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// LevelOptions controls support/resistance calculation.
type LevelOptions struct {
	CurrentPrice        float64 // 0 means use the last close
	LookbackBars        int
	SwingWindow         int    // bars on each side for swing detection
	Sensitivity         string // "low", "medium", or "high": affects zone width
	RoundNumberInterval float64
	RoundNumberCount    int
	TimeframeLabel      string
}

// DefaultLevelOptions returns the default S/R parameters.
func DefaultLevelOptions() LevelOptions {
	return LevelOptions{
		LookbackBars:        100,
		SwingWindow:         5,
		Sensitivity:         "medium",
		RoundNumberInterval: 10.0,
		RoundNumberCount:    5,
	}
}

const volumeProfileBins = 50

// sensitivityZonePct maps sensitivity to the zone half-width fraction.
var sensitivityZonePct = map[string]float64{
	"low":    0.005,
	"medium": 0.01,
	"high":   0.02,
}

// sourcePriority decides which candidate survives a merge.
var sourcePriority = map[model.LevelSource]int{
	model.SourceSwing:       3,
	model.SourceVolume:      2,
	model.SourceMACluster:   2,
	model.SourceRoundNumber: 1,
}

// sourceStrengthWeights feed the 1-10 strength score.
var sourceStrengthWeights = map[model.LevelSource]float64{
	model.SourceSwing:       3.0,
	model.SourceVolume:      2.5,
	model.SourceMACluster:   2.0,
	model.SourceRoundNumber: 1.5,
}

// CalculateLevels derives support/resistance levels from swing points,
// volume-profile nodes, and psychological round numbers, then merges,
// classifies, and scores them. Output is sorted by strength score
// descending. Levels are re-derived fully on every call.
func CalculateLevels(bars []model.Bar, opts LevelOptions) []model.SRLevel {
	if len(bars) == 0 {
		return nil
	}
	currentPrice := opts.CurrentPrice
	if currentPrice == 0 {
		currentPrice = bars[len(bars)-1].Close
	}
	if currentPrice <= 0 {
		return nil
	}
	if opts.LookbackBars == 0 {
		opts.LookbackBars = 100
	}
	if opts.RoundNumberInterval == 0 {
		opts.RoundNumberInterval = 10.0
	}
	if opts.RoundNumberCount == 0 {
		opts.RoundNumberCount = 5
	}

	window := tail(bars, opts.LookbackBars)
	zonePct, ok := sensitivityZonePct[opts.Sensitivity]
	if !ok {
		zonePct = sensitivityZonePct["medium"]
	}

	candidates := FindSwingPoints(window, opts.SwingWindow, zonePct)
	if hasVolume(window) {
		candidates = append(candidates, VolumeNodes(window, volumeProfileBins, zonePct)...)
	}
	// Round numbers are meaningful on daily charts; intraday and weekly
	// series skip them.
	if opts.TimeframeLabel == "" || opts.TimeframeLabel == "daily" {
		candidates = append(candidates, DetectRoundNumbers(currentPrice, opts.RoundNumberInterval, zonePct, opts.RoundNumberCount)...)
	}

	levels := mergeNearbyLevels(candidates, currentPrice, zonePct)

	asOf := window[len(window)-1].Time
	for i := range levels {
		l := &levels[i]
		switch {
		case l.Price < currentPrice:
			l.LevelType = model.LevelSupport
		case l.Price > currentPrice:
			l.LevelType = model.LevelResistance
		default:
			l.LevelType = model.LevelBoth
		}

		l.Touches, l.Breaks, l.LastTest = countTouches(window, l.ZoneLow, l.ZoneHigh, l.LevelType)
		l.DaysSinceTest = daysBetween(l.LastTest, asOf)
		l.Strength = levelStrength(*l, currentPrice)
		l.StrengthScore = levelStrengthScore(*l)
		l.Timeframe = opts.TimeframeLabel
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].StrengthScore > levels[j].StrengthScore
	})

	support, resistance := 0, 0
	for _, l := range levels {
		switch l.LevelType {
		case model.LevelSupport:
			support++
		case model.LevelResistance:
			resistance++
		}
	}
	log.Info().
		Int("total", len(levels)).
		Int("support", support).
		Int("resistance", resistance).
		Str("timeframe", opts.TimeframeLabel).
		Msg("support/resistance calculation complete")

	return levels
}

// FindSwingPoints returns pivot levels: a swing high has the highest high
// within `window` bars on each side, a swing low the lowest low.
func FindSwingPoints(bars []model.Bar, window int, zonePct float64) []model.SRLevel {
	if window <= 0 {
		window = 5
	}
	var levels []model.SRLevel
	for i := window; i < len(bars)-window; i++ {
		isHigh, isLow := true, true
		for j := i - window; j <= i+window; j++ {
			if bars[j].High > bars[i].High {
				isHigh = false
			}
			if bars[j].Low < bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			levels = append(levels, swingLevel(bars[i].High, model.LevelResistance, bars[i].Time, zonePct))
		}
		if isLow {
			levels = append(levels, swingLevel(bars[i].Low, model.LevelSupport, bars[i].Time, zonePct))
		}
	}
	return levels
}

func swingLevel(price float64, lt model.LevelType, t time.Time, zonePct float64) model.SRLevel {
	w := price * zonePct
	return model.SRLevel{
		Price:     price,
		LevelType: lt,
		Source:    model.SourceSwing,
		Strength:  5, // recalculated after merging
		LastTest:  t,
		ZoneLow:   price - w,
		ZoneHigh:  price + w,
	}
}

// VolumeNodes bins the lookback price range and flags bins whose
// accumulated volume exceeds one standard deviation above the mean. Each
// bar's volume is distributed evenly across the bins its range spans.
func VolumeNodes(bars []model.Bar, numBins int, zonePct float64) []model.SRLevel {
	if len(bars) == 0 || numBins <= 0 {
		return nil
	}
	priceMin, priceMax := bars[0].Low, bars[0].High
	for _, b := range bars {
		if b.Low < priceMin {
			priceMin = b.Low
		}
		if b.High > priceMax {
			priceMax = b.High
		}
	}
	if priceMin == priceMax {
		return nil
	}

	binSize := (priceMax - priceMin) / float64(numBins)
	profile := make([]float64, numBins)
	for _, b := range bars {
		if !b.HasVolume() {
			continue
		}
		lowBin := int((b.Low - priceMin) / binSize)
		if lowBin < 0 {
			lowBin = 0
		}
		highBin := int((b.High - priceMin) / binSize)
		if highBin > numBins-1 {
			highBin = numBins - 1
		}
		span := highBin - lowBin + 1
		if span <= 0 {
			continue
		}
		perBin := b.Volume / float64(span)
		for bin := lowBin; bin <= highBin; bin++ {
			profile[bin] += perBin
		}
	}

	threshold := mean(profile) + stddev(profile)
	var levels []model.SRLevel
	for i, vol := range profile {
		if vol <= threshold {
			continue
		}
		price := priceMin + (float64(i)+0.5)*binSize
		w := price * zonePct
		levels = append(levels, model.SRLevel{
			Price:     price,
			LevelType: model.LevelBoth,
			Source:    model.SourceVolume,
			Strength:  5,
			ZoneLow:   price - w,
			ZoneHigh:  price + w,
		})
	}
	return levels
}

// DetectRoundNumbers generates psychological levels spaced at `interval`
// around the nearest multiple below the current price.
func DetectRoundNumbers(currentPrice, interval, zonePct float64, count int) []model.SRLevel {
	if interval <= 0 || count <= 0 {
		return nil
	}
	base := math.Floor(currentPrice/interval) * interval

	var levels []model.SRLevel
	for i := -count; i <= count; i++ {
		price := base + float64(i)*interval
		if price <= 0 {
			continue
		}
		lt := model.LevelResistance
		if price < currentPrice {
			lt = model.LevelSupport
		}
		w := price * zonePct
		levels = append(levels, model.SRLevel{
			Price:     price,
			LevelType: lt,
			Source:    model.SourceRoundNumber,
			Strength:  3, // lower base strength for round numbers
			ZoneLow:   price - w,
			ZoneHigh:  price + w,
		})
	}
	return levels
}

// mergeNearbyLevels collapses candidates within twice the zone width of each
// other. The candidate from the higher-priority source survives with its
// strength bumped by one.
func mergeNearbyLevels(levels []model.SRLevel, currentPrice, zonePct float64) []model.SRLevel {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]model.SRLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	threshold := currentPrice * zonePct * 2
	merged := []model.SRLevel{sorted[0]}
	for _, level := range sorted[1:] {
		last := &merged[len(merged)-1]
		if math.Abs(level.Price-last.Price) > threshold {
			merged = append(merged, level)
			continue
		}
		if sourcePriority[level.Source] > sourcePriority[last.Source] {
			level.Strength = minInt(10, level.Strength+1)
			merged[len(merged)-1] = level
		} else {
			last.Strength = minInt(10, last.Strength+1)
		}
	}
	return merged
}

// countTouches counts bars whose range overlaps the zone, and how many of
// those closed beyond it in the adverse direction.
func countTouches(bars []model.Bar, zoneLow, zoneHigh float64, lt model.LevelType) (touches, breaks int, lastTouch time.Time) {
	for _, b := range bars {
		if b.Low > zoneHigh || b.High < zoneLow {
			continue
		}
		touches++
		lastTouch = b.Time
		if lt == model.LevelSupport && b.Close < zoneLow {
			breaks++
		} else if lt == model.LevelResistance && b.Close > zoneHigh {
			breaks++
		}
	}
	return touches, breaks, lastTouch
}

// levelStrength scores a level 1-10 from touches, source methodology,
// proximity to the current price, and accumulated merge strength.
func levelStrength(l model.SRLevel, currentPrice float64) int {
	score := 0.0

	switch {
	case l.Touches >= 5:
		score += 3.0
	case l.Touches >= 3:
		score += 2.0
	case l.Touches >= 1:
		score += 1.0
	}

	if w, ok := sourceStrengthWeights[l.Source]; ok {
		score += w
	} else {
		score += 1.0
	}

	distance := math.Abs(l.Price-currentPrice) / currentPrice
	switch {
	case distance < 0.05:
		score += 2.0
	case distance < 0.10:
		score += 1.5
	case distance < 0.20:
		score += 1.0
	default:
		score += 0.5
	}

	score += float64(l.Strength) * 0.2

	return clampRound(score, 1, 10)
}

// levelStrengthScore computes the 0-100 composite: touch count (max 40),
// source bonus, recency of the last test, and held-vs-broken record.
func levelStrengthScore(l model.SRLevel) int {
	score := l.Touches * 4
	if score > 40 {
		score = 40
	}

	switch l.Source {
	case model.SourceVolume:
		score += 15
	case model.SourceSwing:
		score += 10
	default:
		score += 5
	}

	if l.DaysSinceTest >= 0 {
		recency := 20 - l.DaysSinceTest*2
		if recency > 0 {
			score += recency
		}
	} else {
		score += 5 // unknown recency gets partial credit
	}

	if l.Breaks == 0 {
		score += 20
	} else if held := 20 - l.Breaks*5; held > 0 {
		score += held
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// SummarizeLevels builds the S/R summary: nearest levels on each side of
// the current price, key levels (confluence, or strength >= 8 excluding
// bare round numbers), and the minor remainder.
func SummarizeLevels(levels []model.SRLevel, currentPrice float64, timeframes []string, lookbacks map[string]string) model.LevelSummary {
	summary := model.LevelSummary{
		CurrentPrice:       currentPrice,
		TotalLevels:        len(levels),
		SupportLevels:      []model.SRLevel{},
		ResistanceLevels:   []model.SRLevel{},
		KeyLevels:          []model.SRLevel{},
		MinorLevels:        []model.SRLevel{},
		TimeframesAnalyzed: timeframes,
		LookbackPeriods:    lookbacks,
	}
	if summary.TimeframesAnalyzed == nil {
		summary.TimeframesAnalyzed = []string{}
	}
	if summary.LookbackPeriods == nil {
		summary.LookbackPeriods = map[string]string{}
	}

	for _, l := range levels {
		switch l.LevelType {
		case model.LevelSupport:
			summary.SupportLevels = append(summary.SupportLevels, l)
		case model.LevelResistance:
			summary.ResistanceLevels = append(summary.ResistanceLevels, l)
		}

		if isKeyLevel(l) {
			summary.KeyLevels = append(summary.KeyLevels, l)
		} else {
			summary.MinorLevels = append(summary.MinorLevels, l)
		}
	}

	sort.SliceStable(summary.SupportLevels, func(i, j int) bool {
		return summary.SupportLevels[i].Price > summary.SupportLevels[j].Price
	})
	sort.SliceStable(summary.ResistanceLevels, func(i, j int) bool {
		return summary.ResistanceLevels[i].Price < summary.ResistanceLevels[j].Price
	})

	if len(summary.SupportLevels) > 0 {
		nearest := summary.SupportLevels[0]
		summary.NearestSupport = &nearest
	}
	if len(summary.ResistanceLevels) > 0 {
		nearest := summary.ResistanceLevels[0]
		summary.NearestResistance = &nearest
	}
	return summary
}

// isKeyLevel: confluence levels are always key; bare round numbers never
// are, regardless of strength.
func isKeyLevel(l model.SRLevel) bool {
	if l.IsConfluence {
		return true
	}
	if l.Source == model.SourceRoundNumber {
		return false
	}
	return l.Strength >= 8
}

// daysBetween returns whole days from `from` to `asOf`, or -1 when the
// reference time is unknown.
func daysBetween(from, asOf time.Time) int {
	if from.IsZero() || asOf.IsZero() {
		return -1
	}
	d := int(asOf.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
