package report

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/marvinguevarra/trading-analyzer/internal/ingest"
	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

func testSeries(timeframe string, n int) *ingest.ParsedSeries {
	prices := []float64{100, 105, 110, 105, 100, 95, 90, 95}
	bars := make([]model.Bar, 0, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := prices[i%len(prices)]
		bars = append(bars, model.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   p,
			High:   p + 1,
			Low:    p - 1,
			Close:  p,
			Volume: math.NaN(),
		})
	}
	return &ingest.ParsedSeries{
		Series:  model.Series{Symbol: "TEST", Timeframe: timeframe, Bars: bars},
		Quality: ingest.Quality{Score: 1.0, TotalRows: n},
	}
}

func TestBuild_SingleSeries(t *testing.T) {
	primary := testSeries("daily", 60)
	rep := Build(primary, nil, DefaultOptions())

	if rep.Metadata.RunID == "" {
		t.Error("run id must be set")
	}
	if rep.Metadata.Symbol != "TEST" || rep.Metadata.Timeframe != "daily" {
		t.Errorf("wrong metadata: %+v", rep.Metadata)
	}
	if rep.Metadata.BarCount != 60 {
		t.Errorf("expected 60 bars, got %d", rep.Metadata.BarCount)
	}
	if rep.CurrentPrice != primary.Series.LastClose() {
		t.Errorf("current price must be the last close, got %.2f", rep.CurrentPrice)
	}
	if rep.Levels.TotalLevels == 0 {
		t.Error("oscillating series must produce levels")
	}
	if len(rep.Levels.TimeframesAnalyzed) != 1 || rep.Levels.TimeframesAnalyzed[0] != "daily" {
		t.Errorf("wrong timeframes: %v", rep.Levels.TimeframesAnalyzed)
	}
	if rep.Levels.LookbackPeriods["daily"] != "60 bars" {
		t.Errorf("wrong lookback label: %v", rep.Levels.LookbackPeriods)
	}
}

func TestBuild_MultiTimeframe(t *testing.T) {
	primary := testSeries("daily", 60)
	extra := testSeries("weekly", 40)
	rep := Build(primary, []*ingest.ParsedSeries{extra}, DefaultOptions())

	if len(rep.Levels.TimeframesAnalyzed) != 2 {
		t.Fatalf("expected 2 timeframes, got %v", rep.Levels.TimeframesAnalyzed)
	}
	confluence := 0
	for _, l := range append(rep.Levels.SupportLevels, rep.Levels.ResistanceLevels...) {
		if l.IsConfluence {
			confluence++
		}
	}
	if confluence == 0 {
		t.Error("identical price paths must produce confluence levels")
	}
}

func TestReport_JSONShape(t *testing.T) {
	rep := Build(testSeries("daily", 60), nil, DefaultOptions())
	data, err := rep.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("report json must be valid: %v", err)
	}
	for _, key := range []string{"metadata", "current_price", "gaps", "levels", "zones"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing top-level field %q", key)
		}
	}
	levels, ok := m["levels"].(map[string]any)
	if !ok {
		t.Fatal("levels must be an object")
	}
	for _, key := range []string{"current_price", "total_levels", "support_levels", "resistance_levels",
		"nearest_support", "nearest_resistance", "key_levels", "minor_levels"} {
		if _, ok := levels[key]; !ok {
			t.Errorf("missing levels field %q", key)
		}
	}
}

func TestReport_Markdown(t *testing.T) {
	rep := Build(testSeries("daily", 60), nil, DefaultOptions())
	md := rep.Markdown()
	if !strings.Contains(md, "# TEST Technical Analysis") {
		t.Error("markdown must open with the symbol heading")
	}
	if !strings.Contains(md, "## Support / Resistance") {
		t.Error("markdown must include the levels section")
	}
	if !strings.Contains(md, "## Supply / Demand Zones") {
		t.Error("markdown must include the zones section")
	}
}

func TestReport_RunRecord(t *testing.T) {
	rep := Build(testSeries("daily", 60), nil, DefaultOptions())
	rec := rep.RunRecord("data/test.csv")
	if rec.ID != rep.Metadata.RunID {
		t.Error("run record must carry the report run id")
	}
	if rec.Symbol != "TEST" || rec.SourceFile != "data/test.csv" {
		t.Errorf("wrong run record: %+v", rec)
	}
	if rec.LevelCount != rep.Levels.TotalLevels {
		t.Error("level count mismatch")
	}
}
