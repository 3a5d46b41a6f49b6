package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// bar builds a volume-less daily bar n days after the epoch start.
func bar(day int, o, h, l, c float64) model.Bar {
	return model.Bar{
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: math.NaN(),
	}
}

func volBar(day int, o, h, l, c, v float64) model.Bar {
	b := bar(day, o, h, l, c)
	b.Volume = v
	return b
}

func TestDetectGaps_GapUp(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 105, 98, 103),
		bar(1, 102, 108, 100, 106),
		bar(2, 115, 118, 112, 116), // low 112 clears prior high 108
		bar(3, 116, 119, 114, 117),
		bar(4, 117, 120, 115, 118),
	}

	gaps := DetectGaps(bars, GapOptions{MinGapPct: 2.0, IncludeBodyGaps: true})
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	g := gaps[0]
	if g.Direction != model.GapUp {
		t.Errorf("expected gap up, got %s", g.Direction)
	}
	if g.GapLow != 108 || g.GapHigh != 112 {
		t.Errorf("expected gap range 108-112, got %.2f-%.2f", g.GapLow, g.GapHigh)
	}
	if g.Filled {
		t.Error("price never traded back to 108, gap must stay unfilled")
	}
	if g.GapType != model.GapCommon {
		t.Errorf("expected common gap with short lookback, got %s", g.GapType)
	}
	if g.Severity < 1 || g.Severity > 10 {
		t.Errorf("severity out of range: %d", g.Severity)
	}
	if g.BarsSince != 2 {
		t.Errorf("expected 2 bars since gap, got %d", g.BarsSince)
	}
}

func TestDetectGaps_GapDownFilled(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 105, 98, 100),
		bar(1, 90, 92, 88, 90), // high 92 below prior low 98
		bar(2, 91, 99, 90, 97), // high 99 reaches gap high 98
	}

	gaps := DetectGaps(bars, GapOptions{MinGapPct: 2.0})
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	g := gaps[0]
	if g.Direction != model.GapDown {
		t.Errorf("expected gap down, got %s", g.Direction)
	}
	if g.GapLow != 92 || g.GapHigh != 98 {
		t.Errorf("expected gap range 92-98, got %.2f-%.2f", g.GapLow, g.GapHigh)
	}
	if !g.Filled {
		t.Error("expected gap filled by bar reaching 99")
	}
	if g.FillPct != 1.0 {
		t.Errorf("expected full fill, got %.2f", g.FillPct)
	}
	if !g.FillDate.Equal(bars[2].Time) {
		t.Errorf("expected fill date %v, got %v", bars[2].Time, g.FillDate)
	}
}

func TestDetectGaps_PartialFill(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 100, 95, 100),
		bar(1, 110, 112, 110, 111), // gap 100-110
		bar(2, 110, 111, 105, 108), // retrace to 105: half the gap
	}

	gaps := DetectGaps(bars, GapOptions{MinGapPct: 2.0})
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	g := gaps[0]
	if g.Filled {
		t.Error("gap should not be fully filled")
	}
	if math.Abs(g.FillPct-0.5) > 1e-9 {
		t.Errorf("expected 50%% fill, got %.2f", g.FillPct)
	}
}

func TestDetectGaps_NoGapOnOverlap(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 105, 98, 103),
		bar(1, 103, 106, 101, 104),
		bar(2, 104, 107, 102, 105),
	}
	gaps := DetectGaps(bars, GapOptions{MinGapPct: 0.5})
	if len(gaps) != 0 {
		t.Fatalf("overlapping bars must produce no gaps, got %d", len(gaps))
	}
}

func TestDetectGaps_MinGapFilter(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 101, 101.5, 100.8, 101), // 0.3% wick gap
	}
	if gaps := DetectGaps(bars, GapOptions{MinGapPct: 1.0}); len(gaps) != 0 {
		t.Fatalf("0.3%% gap must be filtered at 1%% minimum, got %d gaps", len(gaps))
	}
	if gaps := DetectGaps(bars, GapOptions{MinGapPct: 0.1}); len(gaps) != 1 {
		t.Fatalf("0.3%% gap must pass a 0.1%% minimum")
	}
}

func TestDetectGaps_BodyGap(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 106, 98, 103),
		bar(1, 105, 108, 102, 107), // wicks overlap, open 105 vs close 103
	}

	withBody := DetectGaps(bars, GapOptions{MinGapPct: 1.0, IncludeBodyGaps: true})
	if len(withBody) != 1 {
		t.Fatalf("expected body gap, got %d gaps", len(withBody))
	}
	if withBody[0].GapLow != 103 || withBody[0].GapHigh != 105 {
		t.Errorf("expected body gap 103-105, got %.2f-%.2f", withBody[0].GapLow, withBody[0].GapHigh)
	}

	withoutBody := DetectGaps(bars, GapOptions{MinGapPct: 1.0, IncludeBodyGaps: false})
	if len(withoutBody) != 0 {
		t.Fatalf("body gaps disabled, got %d gaps", len(withoutBody))
	}
}

func TestDetectGaps_TooFewBars(t *testing.T) {
	if gaps := DetectGaps([]model.Bar{bar(0, 100, 101, 99, 100)}, DefaultGapOptions()); gaps != nil {
		t.Fatalf("single bar must yield no gaps, got %d", len(gaps))
	}
	if gaps := DetectGaps(nil, DefaultGapOptions()); gaps != nil {
		t.Fatal("nil input must yield no gaps")
	}
}

// classifyBars builds a lookback window from closes (each bar spans
// close±1 with the given volume) plus the gap bar carrying gapVolume.
func classifyBars(closes []float64, windowVolume, gapVolume float64) []model.Bar {
	bars := make([]model.Bar, 0, len(closes)+1)
	for i, c := range closes {
		bars = append(bars, volBar(i, c, c+1, c-1, c, windowVolume))
	}
	last := closes[len(closes)-1]
	bars = append(bars, volBar(len(closes), last+5, last+6, last+4, last+5, gapVolume))
	return bars
}

func TestClassifyGap_Types(t *testing.T) {
	consolidation := []float64{100, 100.5, 100, 100.3, 100.1, 100.4}
	uptrend25 := []float64{100, 105, 110, 115, 120, 125}
	uptrend15 := []float64{100, 103, 106, 109, 112, 115}
	choppy := []float64{100, 92, 108, 95, 105, 107} // 18% range, 7% net change

	cases := []struct {
		name      string
		closes    []float64
		gapVolume float64
		sizePct   float64
		want      model.GapType
	}{
		{"consolidation breakout on volume", consolidation, 3000, 4, model.GapBreakaway},
		{"extended trend without volume", uptrend25, 1000, 4, model.GapExhaustion},
		{"established trend with volume", uptrend15, 3000, 4, model.GapRunaway},
		{"small gap in quiet range", consolidation, 1000, 2, model.GapCommon},
		{"volatile advance with volume", choppy, 3000, 4, model.GapBreakaway},
		{"large gap without any signal", choppy, 1000, 4, model.GapCommon},
	}
	for _, c := range cases {
		bars := classifyBars(c.closes, 1000, c.gapVolume)
		if got := classifyGap(bars, len(c.closes), c.sizePct); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestClassifyGap_ShortLookback(t *testing.T) {
	bars := classifyBars([]float64{100, 105, 110, 115}, 1000, 5000)
	if got := classifyGap(bars, 4, 8); got != model.GapCommon {
		t.Errorf("under 5 bars of lookback every gap is common, got %s", got)
	}
}

func TestPrioritizeGaps_UnfilledFirst(t *testing.T) {
	gaps := []model.Gap{
		{Filled: true, Severity: 9, SizePct: 5},
		{Filled: false, Severity: 4, SizePct: 2},
		{Filled: false, Severity: 7, SizePct: 3},
	}
	out := PrioritizeGaps(gaps)
	if out[0].Filled || out[1].Filled {
		t.Error("unfilled gaps must sort before filled gaps")
	}
	if out[0].Severity != 7 {
		t.Errorf("expected severity 7 first among unfilled, got %d", out[0].Severity)
	}
	if !out[2].Filled {
		t.Error("filled gap must sort last")
	}
	if gaps[0].Severity != 9 {
		t.Error("input slice must not be reordered")
	}
}

func TestSummarizeGaps_Empty(t *testing.T) {
	s := SummarizeGaps(nil)
	if s.Total != 0 || s.Unfilled != 0 {
		t.Errorf("empty input must produce zero counts, got %d/%d", s.Total, s.Unfilled)
	}
	if s.Gaps == nil || s.ByType == nil || s.ByDirection == nil {
		t.Error("summary collections must be non-nil")
	}
	if s.LargestUnfilled != nil {
		t.Error("no gaps means no largest unfilled gap")
	}
	if s.ByDirection["up"] != 0 || s.ByDirection["down"] != 0 {
		t.Error("direction counts must default to zero")
	}
}

func TestSummarizeGaps_Counts(t *testing.T) {
	bars := []model.Bar{
		bar(0, 100, 105, 98, 103),
		bar(1, 102, 108, 100, 106),
		bar(2, 115, 118, 112, 116),
		bar(3, 116, 119, 114, 117),
		bar(4, 117, 120, 115, 118),
	}
	gaps := DetectGaps(bars, GapOptions{MinGapPct: 2.0})
	s := SummarizeGaps(gaps)
	if s.Total != 1 || s.Unfilled != 1 {
		t.Fatalf("expected 1 total / 1 unfilled, got %d/%d", s.Total, s.Unfilled)
	}
	if s.ByDirection["up"] != 1 {
		t.Errorf("expected 1 up gap, got %d", s.ByDirection["up"])
	}
	if s.LargestUnfilled == nil {
		t.Fatal("expected a largest unfilled gap")
	}
	if s.LargestUnfilled.GapLow != 108 {
		t.Errorf("wrong largest unfilled gap: %+v", s.LargestUnfilled)
	}
}
