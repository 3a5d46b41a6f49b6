package analyzer

import (
	"math"
	"testing"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

func TestDetectConfluence_MergesAcrossTimeframes(t *testing.T) {
	levels := []model.SRLevel{
		{Price: 100.0, LevelType: model.LevelSupport, Source: model.SourceSwing,
			Touches: 3, Strength: 6, StrengthScore: 60, ZoneLow: 99, ZoneHigh: 101, Timeframe: "daily"},
		{Price: 100.3, LevelType: model.LevelSupport, Source: model.SourceSwing,
			Touches: 4, Strength: 7, StrengthScore: 70, ZoneLow: 99.3, ZoneHigh: 101.3, Timeframe: "weekly"},
	}

	out := DetectConfluence(levels, 0.005)
	if len(out) != 1 {
		t.Fatalf("expected 1 merged level, got %d", len(out))
	}
	m := out[0]
	if !m.IsConfluence {
		t.Fatal("merged level must be flagged as confluence")
	}
	if math.Abs(m.Price-100.15) > 1e-9 {
		t.Errorf("expected mean price 100.15, got %.4f", m.Price)
	}
	if m.Touches != 7 {
		t.Errorf("expected summed touches 7, got %d", m.Touches)
	}
	if m.Strength != 9 {
		t.Errorf("expected strength max(6,7)+2=9, got %d", m.Strength)
	}
	if m.StrengthScore != 70 {
		t.Errorf("expected strength score 70, got %d", m.StrengthScore)
	}
	if m.ZoneLow != 99 || m.ZoneHigh != 101.3 {
		t.Errorf("expected union zone 99-101.3, got %.2f-%.2f", m.ZoneLow, m.ZoneHigh)
	}
	if len(m.ConfluenceTimeframes) != 2 ||
		m.ConfluenceTimeframes[0] != "daily" || m.ConfluenceTimeframes[1] != "weekly" {
		t.Errorf("expected sorted timeframes [daily weekly], got %v", m.ConfluenceTimeframes)
	}
	if m.Timeframe != "daily + weekly" {
		t.Errorf("expected combined timeframe label, got %q", m.Timeframe)
	}
}

func TestDetectConfluence_SameTimeframeNotMerged(t *testing.T) {
	levels := []model.SRLevel{
		{Price: 100.0, Strength: 5, Timeframe: "daily"},
		{Price: 100.2, Strength: 5, Timeframe: "daily"},
	}
	out := DetectConfluence(levels, 0.005)
	if len(out) != 2 {
		t.Fatalf("same-timeframe levels must not merge, got %d", len(out))
	}
	for _, l := range out {
		if l.IsConfluence {
			t.Error("unmerged level must not be flagged as confluence")
		}
	}
}

func TestDetectConfluence_OneLevelPerTimeframe(t *testing.T) {
	levels := []model.SRLevel{
		{Price: 100.0, Touches: 3, Strength: 6, Timeframe: "daily"},
		{Price: 100.2, Touches: 2, Strength: 5, Timeframe: "weekly"},
		{Price: 100.4, Touches: 4, Strength: 7, Timeframe: "weekly"},
	}

	out := DetectConfluence(levels, 0.005)
	if len(out) != 2 {
		t.Fatalf("a cluster holds one level per timeframe, expected 2 outputs, got %d", len(out))
	}
	var merged, standalone *model.SRLevel
	for i := range out {
		if out[i].IsConfluence {
			merged = &out[i]
		} else {
			standalone = &out[i]
		}
	}
	if merged == nil || standalone == nil {
		t.Fatalf("expected one merged and one standalone level, got %+v", out)
	}
	if merged.Touches != 5 {
		t.Errorf("merge must absorb only the nearer weekly level, got %d touches", merged.Touches)
	}
	if len(merged.ConfluenceTimeframes) != 2 {
		t.Errorf("expected 2 timeframes in the merge, got %v", merged.ConfluenceTimeframes)
	}
	if standalone.Price != 100.4 {
		t.Errorf("second weekly level must survive unmerged, got %.2f", standalone.Price)
	}
}

func TestDetectConfluence_DistantNotMerged(t *testing.T) {
	levels := []model.SRLevel{
		{Price: 100.0, Strength: 5, Timeframe: "daily"},
		{Price: 103.0, Strength: 5, Timeframe: "weekly"}, // 3%, far beyond 0.5%
	}
	out := DetectConfluence(levels, 0.005)
	if len(out) != 2 {
		t.Fatalf("distant levels must not merge, got %d", len(out))
	}
}

func TestDetectConfluence_StrengthCapped(t *testing.T) {
	levels := []model.SRLevel{
		{Price: 100.0, Strength: 9, Timeframe: "daily"},
		{Price: 100.1, Strength: 10, Timeframe: "weekly"},
	}
	out := DetectConfluence(levels, 0.005)
	if len(out) != 1 {
		t.Fatalf("expected merge, got %d levels", len(out))
	}
	if out[0].Strength != 10 {
		t.Errorf("merged strength must cap at 10, got %d", out[0].Strength)
	}
}

func TestDetectConfluence_Empty(t *testing.T) {
	out := DetectConfluence(nil, 0.005)
	if out == nil {
		t.Fatal("empty input must return an empty slice, not nil")
	}
	if len(out) != 0 {
		t.Fatalf("expected no levels, got %d", len(out))
	}
}

func TestDetectConfluence_DefaultThreshold(t *testing.T) {
	levels := []model.SRLevel{
		{Price: 100.0, Strength: 5, Timeframe: "daily"},
		{Price: 100.4, Strength: 5, Timeframe: "weekly"}, // 0.4% < default 0.5%
	}
	out := DetectConfluence(levels, 0)
	if len(out) != 1 {
		t.Fatalf("expected merge at default threshold, got %d levels", len(out))
	}
}

func TestCalculateMultiTimeframeLevels_CombinesSeries(t *testing.T) {
	daily := model.Series{Symbol: "TEST", Timeframe: "daily", Bars: swingBars(60)}
	weekly := model.Series{Symbol: "TEST", Timeframe: "weekly", Bars: swingBars(40)}

	out := CalculateMultiTimeframeLevels([]model.Series{daily, weekly}, DefaultLevelOptions(), 0.005)
	if len(out) == 0 {
		t.Fatal("expected levels from combined series")
	}

	timeframes := map[string]bool{}
	for _, l := range out {
		timeframes[l.Timeframe] = true
		if l.Strength < 1 || l.Strength > 10 {
			t.Errorf("strength out of range: %d", l.Strength)
		}
	}
	// Identical price paths on both timeframes guarantee confluence merges.
	foundConfluence := false
	for _, l := range out {
		if l.IsConfluence {
			foundConfluence = true
			if len(l.ConfluenceTimeframes) < 2 {
				t.Error("confluence level must span at least two timeframes")
			}
		}
	}
	if !foundConfluence {
		t.Error("expected at least one confluence level from identical series")
	}
}
