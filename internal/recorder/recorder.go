package recorder

import "time"

// RunRecord summarizes one completed analysis run.
type RunRecord struct {
	ID           string
	Symbol       string
	Timeframe    string
	SourceFile   string
	BarCount     int
	QualityScore float64
	CurrentPrice float64
	GapCount     int
	UnfilledGaps int
	LevelCount   int
	ZoneCount    int
	FreshZones   int
	GeneratedAt  time.Time
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecentRuns(symbol string, limit int) ([]RunRecord, error)
	Close() error
}
