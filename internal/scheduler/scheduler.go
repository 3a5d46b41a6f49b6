package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/marvinguevarra/trading-analyzer/internal/ingest"
	"github.com/marvinguevarra/trading-analyzer/internal/recorder"
	"github.com/marvinguevarra/trading-analyzer/internal/report"
)

// Scheduler re-analyzes watched CSV files on a cron schedule and writes
// fresh reports each run.
type Scheduler struct {
	Cron     *cron.Cron
	Files    []string
	Options  report.Options
	OutDir   string
	Markdown bool
	Recorder recorder.Recorder
	Ctx      context.Context
}

// NewScheduler creates a Scheduler over the given watch list.
func NewScheduler(ctx context.Context, files []string, opts report.Options, outDir string, markdown bool, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Files:    files,
		Options:  opts,
		OutDir:   outDir,
		Markdown: markdown,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// Register registers the watch task on the given cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register watch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("files", len(s.Files)).Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Info().Msg("scheduler stopped")
}

// RunNow analyzes every watched file immediately (manual trigger and the
// initial run at startup).
func (s *Scheduler) RunNow() {
	for _, path := range s.Files {
		if s.Ctx.Err() != nil {
			return
		}
		if err := s.analyzeFile(path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("watch analysis failed")
		}
	}
}

func (s *Scheduler) analyzeFile(path string) error {
	parsed, err := ingest.LoadCSV(path)
	if err != nil {
		return err
	}
	if !parsed.Quality.Valid() {
		return fmt.Errorf("data quality too low (score %.2f): %s",
			parsed.Quality.Score, strings.Join(parsed.Quality.Errors, "; "))
	}

	rep := report.Build(parsed, nil, s.Options)

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	jsonPath := filepath.Join(s.OutDir, stem+"_analysis.json")
	if err := rep.WriteJSON(jsonPath); err != nil {
		return err
	}
	if s.Markdown {
		mdPath := filepath.Join(s.OutDir, stem+"_analysis.md")
		if err := rep.WriteMarkdown(mdPath); err != nil {
			return err
		}
	}

	if err := s.Recorder.RecordRun(rep.RunRecord(path)); err != nil {
		log.Error().Err(err).Msg("record run")
	}

	log.Info().Str("file", path).Str("report", jsonPath).Msg("watch analysis complete")
	return nil
}
