package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/analyzer"
	"github.com/marvinguevarra/trading-analyzer/internal/ingest"
	"github.com/marvinguevarra/trading-analyzer/internal/model"
	"github.com/marvinguevarra/trading-analyzer/internal/recorder"
)

// Options bundles analyzer parameters for one report run.
type Options struct {
	Gaps       analyzer.GapOptions
	Levels     analyzer.LevelOptions
	Zones      analyzer.ZoneOptions
	Confluence float64 // relative price threshold for cross-timeframe merges
}

// DefaultOptions returns the default analyzer parameters.
func DefaultOptions() Options {
	return Options{
		Gaps:       analyzer.DefaultGapOptions(),
		Levels:     analyzer.DefaultLevelOptions(),
		Zones:      analyzer.DefaultZoneOptions(),
		Confluence: analyzer.DefaultConfluenceThreshold,
	}
}

// Metadata identifies one analysis run.
type Metadata struct {
	RunID        string         `json:"run_id"`
	Symbol       string         `json:"symbol"`
	Timeframe    string         `json:"timeframe"`
	GeneratedAt  string         `json:"generated_at"`
	BarCount     int            `json:"bar_count"`
	FirstBar     *string        `json:"first_bar"`
	LastBar      *string        `json:"last_bar"`
	QualityScore float64        `json:"quality_score"`
	Quality      ingest.Quality `json:"quality"`
}

// Report is the complete analysis payload for one symbol. The primary
// series drives gaps and zones; levels may span additional timeframes.
type Report struct {
	Metadata     Metadata           `json:"metadata"`
	CurrentPrice float64            `json:"current_price"`
	Gaps         model.GapSummary   `json:"gaps"`
	Levels       model.LevelSummary `json:"levels"`
	Zones        model.ZoneSummary  `json:"zones"`
}

// Build runs all three analyzers over the primary series. Extra series, if
// any, contribute S/R levels on their own timeframes before the confluence
// merge; gaps and zones always come from the primary series alone.
func Build(primary *ingest.ParsedSeries, extras []*ingest.ParsedSeries, opts Options) *Report {
	bars := primary.Series.Bars
	currentPrice := primary.Series.LastClose()

	gaps := analyzer.DetectGaps(bars, opts.Gaps)
	zones := analyzer.IdentifyZones(bars, opts.Zones)

	allSeries := []model.Series{primary.Series}
	for _, e := range extras {
		allSeries = append(allSeries, e.Series)
	}

	var levels []model.SRLevel
	timeframes := make([]string, 0, len(allSeries))
	lookbacks := map[string]string{}
	for _, s := range allSeries {
		timeframes = append(timeframes, s.Timeframe)
		n := opts.Levels.LookbackBars
		if n == 0 || n > len(s.Bars) {
			n = len(s.Bars)
		}
		lookbacks[s.Timeframe] = fmt.Sprintf("%d bars", n)
	}
	if len(allSeries) > 1 {
		levels = analyzer.CalculateMultiTimeframeLevels(allSeries, opts.Levels, opts.Confluence)
	} else {
		o := opts.Levels
		o.TimeframeLabel = primary.Series.Timeframe
		levels = analyzer.CalculateLevels(bars, o)
	}

	report := &Report{
		Metadata: Metadata{
			RunID:        uuid.NewString(),
			Symbol:       primary.Series.Symbol,
			Timeframe:    primary.Series.Timeframe,
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			BarCount:     len(bars),
			FirstBar:     isoTimePtr(primary.FirstTime()),
			LastBar:      isoTimePtr(primary.LastTime()),
			QualityScore: primary.Quality.Score,
			Quality:      primary.Quality,
		},
		CurrentPrice: currentPrice,
		Gaps:         analyzer.SummarizeGaps(gaps),
		Levels:       analyzer.SummarizeLevels(levels, currentPrice, timeframes, lookbacks),
		Zones:        analyzer.SummarizeZones(zones, currentPrice),
	}

	log.Info().
		Str("run_id", report.Metadata.RunID).
		Str("symbol", report.Metadata.Symbol).
		Int("gaps", report.Gaps.Total).
		Int("levels", report.Levels.TotalLevels).
		Int("zones", report.Zones.TotalZones).
		Msg("analysis report built")

	return report
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// WriteJSON writes the indented JSON payload to path.
func (r *Report) WriteJSON(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteMarkdown writes the markdown rendering to path.
func (r *Report) WriteMarkdown(path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}

// RunRecord converts the report into a run history row.
func (r *Report) RunRecord(sourceFile string) *recorder.RunRecord {
	return &recorder.RunRecord{
		ID:           r.Metadata.RunID,
		Symbol:       r.Metadata.Symbol,
		Timeframe:    r.Metadata.Timeframe,
		SourceFile:   sourceFile,
		BarCount:     r.Metadata.BarCount,
		QualityScore: r.Metadata.QualityScore,
		CurrentPrice: r.CurrentPrice,
		GapCount:     r.Gaps.Total,
		UnfilledGaps: r.Gaps.Unfilled,
		LevelCount:   r.Levels.TotalLevels,
		ZoneCount:    r.Zones.TotalZones,
		FreshZones:   len(r.Zones.FreshZones),
	}
}

func isoTimePtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
