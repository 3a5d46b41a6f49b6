package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

// The ingestion collaborator: parses TradingView-style CSV exports into an
// ordered, deduplicated bar series plus a quality report. Analyzers rely on
// this package to establish the sorted-unique-timestamp invariant and to
// gate out series with broken OHLC data.

var requiredColumns = []string{"time", "open", "high", "low", "close"}

// exchangePrefixes are stripped from TradingView filenames like NYSE_WHR__1M.
var exchangePrefixes = map[string]bool{
	"NYSE": true, "NASDAQ": true, "AMEX": true, "LSE": true,
	"TSE": true, "BINANCE": true, "COINBASE": true, "CME": true,
}

var timeframeSuffixRe = regexp.MustCompile(`__?\d+[mMhHdDwW]$`)

// timeframeThresholds map a label to the approximate bar interval in
// seconds; detection picks the closest match to the median interval.
var timeframeThresholds = []struct {
	Label   string
	Seconds float64
}{
	{"1m", 90},
	{"5m", 400},
	{"15m", 1200},
	{"1h", 5400},
	{"4h", 18000},
	{"1d", 108000},
	{"1w", 700000},
	{"1M", 2800000},
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Quality is the data quality report handed downstream with every series.
type Quality struct {
	Score         float64        `json:"score"`
	TotalRows     int            `json:"total_rows"`
	MissingValues map[string]int `json:"missing_values"`
	TimeGaps      int            `json:"gaps_detected"`
	DuplicateRows int            `json:"duplicate_rows"`
	Errors        []string       `json:"errors"`
	Warnings      []string       `json:"warnings"`
}

// Valid reports whether the series is clean enough to analyze.
func (q Quality) Valid() bool {
	return q.Score >= 0.5 && len(q.Errors) == 0
}

// ParsedSeries is the result of parsing one CSV file.
type ParsedSeries struct {
	Series     model.Series
	Quality    Quality
	Indicators []string // extra non-OHLCV columns found in the file
}

// FirstTime returns the timestamp of the first bar (zero when empty).
func (p *ParsedSeries) FirstTime() time.Time {
	if len(p.Series.Bars) == 0 {
		return time.Time{}
	}
	return p.Series.Bars[0].Time
}

// LastTime returns the timestamp of the last bar (zero when empty).
func (p *ParsedSeries) LastTime() time.Time {
	if len(p.Series.Bars) == 0 {
		return time.Time{}
	}
	return p.Series.Bars[len(p.Series.Bars)-1].Time
}

// LoadCSV parses a CSV file from disk.
func LoadCSV(path string) (*ParsedSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseCSV(f, stem)
}

// ParseCSV parses CSV content from a reader. The filename stem is used for
// symbol extraction only.
func ParseCSV(r io.Reader, filenameStem string) (*ParsedSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := normalizeColumns(header)
	if missing := missingRequired(cols); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s (have: %s)",
			strings.Join(missing, ", "), strings.Join(cols, ", "))
	}

	idx := map[string]int{}
	var indicators []string
	for i, name := range cols {
		if _, dup := idx[name]; dup {
			continue
		}
		idx[name] = i
		if !isOHLCVColumn(name) {
			indicators = append(indicators, name)
		}
	}
	_, hasVolumeCol := idx["volume"]

	var (
		bars          []model.Bar
		missingValues = map[string]int{}
		badTimes      int
		droppedRows   int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		t, ok := parseTime(field(record, idx["time"]))
		if !ok {
			badTimes++
			continue
		}

		bar := model.Bar{
			Time:   t,
			Open:   parseFloat(field(record, idx["open"])),
			High:   parseFloat(field(record, idx["high"])),
			Low:    parseFloat(field(record, idx["low"])),
			Close:  parseFloat(field(record, idx["close"])),
			Volume: math.NaN(),
		}
		if hasVolumeCol {
			bar.Volume = parseFloat(field(record, idx["volume"]))
		}

		// Bars with missing prices cannot be analyzed; count and drop.
		dropped := false
		for name, v := range map[string]float64{
			"open": bar.Open, "high": bar.High, "low": bar.Low, "close": bar.Close,
		} {
			if math.IsNaN(v) {
				missingValues[name]++
				dropped = true
			}
		}
		if dropped {
			droppedRows++
			continue
		}
		if hasVolumeCol && math.IsNaN(bar.Volume) {
			missingValues["volume"]++
		}
		bars = append(bars, bar)
	}

	totalRows := len(bars) + droppedRows + badTimes

	// Establish the analyzer input invariant: ascending unique timestamps.
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	bars, duplicates := dedupeTimestamps(bars)

	timeframe := detectTimeframe(bars)
	symbol := extractSymbol(filenameStem)
	quality := assessQuality(bars, totalRows, missingValues, duplicates, badTimes)

	log.Info().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("bars", len(bars)).
		Float64("quality", quality.Score).
		Msg("csv parsed")

	return &ParsedSeries{
		Series: model.Series{
			Symbol:    symbol,
			Timeframe: timeframe,
			Bars:      bars,
		},
		Quality:    quality,
		Indicators: indicators,
	}, nil
}

// normalizeColumns maps header aliases to the canonical lowercase names.
func normalizeColumns(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		lower := strings.ToLower(strings.TrimSpace(col))
		switch lower {
		case "time", "date", "datetime", "timestamp":
			out[i] = "time"
		case "open", "o":
			out[i] = "open"
		case "high", "h":
			out[i] = "high"
		case "low", "l":
			out[i] = "low"
		case "close", "c", "adj close":
			out[i] = "close"
		case "volume", "vol", "v":
			out[i] = "volume"
		default:
			out[i] = strings.ReplaceAll(lower, " ", "_")
		}
	}
	return out
}

func missingRequired(cols []string) []string {
	have := map[string]bool{}
	for _, c := range cols {
		have[c] = true
	}
	var missing []string
	for _, req := range requiredColumns {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

func isOHLCVColumn(name string) bool {
	switch name {
	case "time", "open", "high", "low", "close", "volume":
		return true
	}
	return false
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseTime accepts unix seconds or common date layouts.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// dedupeTimestamps keeps the first bar for each timestamp.
func dedupeTimestamps(bars []model.Bar) ([]model.Bar, int) {
	if len(bars) < 2 {
		return bars, 0
	}
	out := bars[:1]
	duplicates := 0
	for _, b := range bars[1:] {
		if b.Time.Equal(out[len(out)-1].Time) {
			duplicates++
			continue
		}
		out = append(out, b)
	}
	return out, duplicates
}

// detectTimeframe matches the median bar interval to the closest known
// timeframe label.
func detectTimeframe(bars []model.Bar) string {
	if len(bars) < 2 {
		return "unknown"
	}
	intervals := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		intervals = append(intervals, bars[i].Time.Sub(bars[i-1].Time).Seconds())
	}
	med := median(intervals)

	best := "unknown"
	bestDiff := math.Inf(1)
	for _, tf := range timeframeThresholds {
		if diff := math.Abs(med - tf.Seconds); diff < bestDiff {
			bestDiff = diff
			best = tf.Label
		}
	}
	return best
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// extractSymbol pulls the trading symbol out of a TradingView-style
// filename stem such as NYSE_WHR__1M or BTCUSD_1D.
func extractSymbol(stem string) string {
	stem = timeframeSuffixRe.ReplaceAllString(stem, "")
	parts := strings.Split(stem, "_")
	symbol := parts[0]
	if len(parts) > 1 && exchangePrefixes[strings.ToUpper(parts[0])] {
		symbol = parts[1]
	}
	return strings.ToUpper(symbol)
}

// assessQuality scores the parsed series 0-1, deducting for short data,
// missing values, duplicates, time gaps, and OHLC violations.
func assessQuality(bars []model.Bar, totalRows int, missingValues map[string]int, duplicates, badTimes int) Quality {
	q := Quality{
		Score:         1.0,
		TotalRows:     totalRows,
		MissingValues: missingValues,
		DuplicateRows: duplicates,
		Errors:        []string{},
		Warnings:      []string{},
	}

	if totalRows < 10 {
		q.Errors = append(q.Errors, fmt.Sprintf("too few rows: %d (minimum 10)", totalRows))
		q.Score -= 0.3
	}

	if badTimes > 0 {
		q.Warnings = append(q.Warnings, fmt.Sprintf("%d rows with unparseable timestamps", badTimes))
		q.Score -= 0.05
	}

	for _, col := range []string{"open", "high", "low", "close"} {
		missing := missingValues[col]
		if missing == 0 {
			continue
		}
		pct := float64(missing) / float64(totalRows)
		if pct > 0.1 {
			q.Errors = append(q.Errors, fmt.Sprintf("%s: %d missing values (%.1f%%)", col, missing, pct*100))
			q.Score -= 0.2
		} else {
			q.Warnings = append(q.Warnings, fmt.Sprintf("%s: %d missing values (%.1f%%)", col, missing, pct*100))
			q.Score -= 0.05
		}
	}
	if missing := missingValues["volume"]; missing > 0 {
		q.Warnings = append(q.Warnings, fmt.Sprintf("volume: %d missing values", missing))
		q.Score -= 0.02
	}

	if duplicates > 0 {
		q.Warnings = append(q.Warnings, fmt.Sprintf("%d duplicate timestamps", duplicates))
		q.Score -= 0.05
	}

	// Time gaps: intervals wider than 2.5x the median mean missing bars.
	if len(bars) > 2 {
		intervals := make([]float64, 0, len(bars)-1)
		for i := 1; i < len(bars); i++ {
			intervals = append(intervals, bars[i].Time.Sub(bars[i-1].Time).Seconds())
		}
		med := median(intervals)
		for _, iv := range intervals {
			if iv > med*2.5 {
				q.TimeGaps++
			}
		}
		if q.TimeGaps > 0 {
			gapPct := float64(q.TimeGaps) / float64(totalRows)
			if gapPct > 0.1 {
				q.Warnings = append(q.Warnings, fmt.Sprintf("%d time gaps detected (%.1f%% of bars)", q.TimeGaps, gapPct*100))
				q.Score -= 0.1
			} else {
				q.Warnings = append(q.Warnings, fmt.Sprintf("%d time gaps detected", q.TimeGaps))
			}
		}
	}

	ohlcErrors := 0
	nonPositive := map[string]int{}
	for _, b := range bars {
		if b.High < b.Low {
			ohlcErrors++
		}
		if b.High < b.Open || b.High < b.Close {
			ohlcErrors++
		}
		if b.Low > b.Open || b.Low > b.Close {
			ohlcErrors++
		}
		for name, v := range map[string]float64{
			"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close,
		} {
			if v <= 0 {
				nonPositive[name]++
			}
		}
	}
	if ohlcErrors > 0 {
		q.Errors = append(q.Errors, fmt.Sprintf("%d OHLC consistency violations", ohlcErrors))
		q.Score -= 0.15
	}
	for _, col := range []string{"open", "high", "low", "close"} {
		if bad := nonPositive[col]; bad > 0 {
			q.Errors = append(q.Errors, fmt.Sprintf("%s: %d zero or negative values", col, bad))
			q.Score -= 0.1
		}
	}

	q.Score = math.Max(0, math.Min(1, q.Score))
	return q
}
