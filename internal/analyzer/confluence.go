package analyzer

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// DefaultConfluenceThreshold is the relative price distance within which
// levels from different timeframes are considered the same level.
const DefaultConfluenceThreshold = 0.005

// CalculateMultiTimeframeLevels computes S/R levels for every series
// concurrently, then runs a single confluence pass over the combined set.
// The confluence merge is a join barrier: it only runs once every
// per-timeframe result is complete, so clustering never depends on the
// order in which timeframes finish.
func CalculateMultiTimeframeLevels(series []model.Series, opts LevelOptions, thresholdPct float64) []model.SRLevel {
	results := make([][]model.SRLevel, len(series))

	var wg sync.WaitGroup
	for i, s := range series {
		wg.Add(1)
		go func(i int, s model.Series) {
			defer wg.Done()
			o := opts
			o.TimeframeLabel = s.Timeframe
			o.CurrentPrice = 0 // each timeframe anchors on its own last close
			results[i] = CalculateLevels(s.Bars, o)
		}(i, s)
	}
	wg.Wait()

	var combined []model.SRLevel
	for _, r := range results {
		combined = append(combined, r...)
	}
	return DetectConfluence(combined, thresholdPct)
}

// DetectConfluence merges levels that agree across timeframes. Levels are
// scanned once in price order; each unmerged level greedily clusters the
// subsequent levels within thresholdPct whose timeframe is not already in
// the cluster, giving up once the price distance exceeds three thresholds
// (prices are sorted, so nothing further can match). A cluster holds at
// most one level per timeframe; same-timeframe levels are never merged.
func DetectConfluence(levels []model.SRLevel, thresholdPct float64) []model.SRLevel {
	if thresholdPct <= 0 {
		thresholdPct = DefaultConfluenceThreshold
	}
	out := []model.SRLevel{}
	if len(levels) == 0 {
		return out
	}

	sorted := make([]model.SRLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	used := make([]bool, len(sorted))
	merges := 0
	for i := range sorted {
		if used[i] {
			continue
		}
		seed := sorted[i]
		cluster := []model.SRLevel{seed}
		clusterTFs := map[string]bool{seed.Timeframe: true}
		for j := i + 1; j < len(sorted); j++ {
			dist := sorted[j].Price - seed.Price
			if dist > seed.Price*thresholdPct*3 {
				break
			}
			if used[j] || clusterTFs[sorted[j].Timeframe] {
				continue
			}
			if dist <= seed.Price*thresholdPct {
				cluster = append(cluster, sorted[j])
				clusterTFs[sorted[j].Timeframe] = true
				used[j] = true
			}
		}
		if len(cluster) == 1 {
			out = append(out, seed)
			continue
		}
		out = append(out, mergeCluster(cluster))
		merges++
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StrengthScore > out[j].StrengthScore })

	if merges > 0 {
		log.Info().
			Int("input", len(levels)).
			Int("output", len(out)).
			Int("confluence_levels", merges).
			Msg("cross-timeframe confluence merge complete")
	}
	return out
}

// mergeCluster collapses a confluence cluster into one level: mean price,
// summed touches and breaks, union zone, latest test, strength capped two
// above the strongest member.
func mergeCluster(cluster []model.SRLevel) model.SRLevel {
	merged := cluster[0]

	priceSum := 0.0
	touches, breaks := 0, 0
	maxStrength, maxScore := 0, 0
	tfSet := map[string]bool{}
	for _, l := range cluster {
		priceSum += l.Price
		touches += l.Touches
		breaks += l.Breaks
		if l.Strength > maxStrength {
			maxStrength = l.Strength
		}
		if l.StrengthScore > maxScore {
			maxScore = l.StrengthScore
		}
		if l.ZoneLow < merged.ZoneLow {
			merged.ZoneLow = l.ZoneLow
		}
		if l.ZoneHigh > merged.ZoneHigh {
			merged.ZoneHigh = l.ZoneHigh
		}
		if l.LastTest.After(merged.LastTest) {
			merged.LastTest = l.LastTest
		}
		if l.DaysSinceTest >= 0 && (merged.DaysSinceTest < 0 || l.DaysSinceTest < merged.DaysSinceTest) {
			merged.DaysSinceTest = l.DaysSinceTest
		}
		tfSet[l.Timeframe] = true
	}

	timeframes := make([]string, 0, len(tfSet))
	for tf := range tfSet {
		timeframes = append(timeframes, tf)
	}
	sort.Strings(timeframes)

	merged.Price = priceSum / float64(len(cluster))
	merged.Touches = touches
	merged.Breaks = breaks
	merged.Strength = minInt(10, maxStrength+2)
	merged.StrengthScore = maxScore
	merged.IsConfluence = true
	merged.ConfluenceTimeframes = timeframes
	merged.Timeframe = strings.Join(timeframes, " + ")
	return merged
}
