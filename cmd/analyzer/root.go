package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marvinguevarra/trading-analyzer/internal/analyzer"
	"github.com/marvinguevarra/trading-analyzer/internal/config"
	"github.com/marvinguevarra/trading-analyzer/internal/ingest"
	"github.com/marvinguevarra/trading-analyzer/internal/recorder"
	"github.com/marvinguevarra/trading-analyzer/internal/report"
	"github.com/marvinguevarra/trading-analyzer/internal/scheduler"
)

var (
	configPath  string
	minGapPct   float64
	sensitivity string
	outDir      string
	markdown    bool
	noRecord    bool
)

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Technical analysis of OHLCV chart exports",
	Long: `Analyzer detects price gaps, support/resistance levels, and
supply/demand zones in CSV chart exports, writing JSON and
markdown reports.`,
	SilenceUsage: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE [FILE...]",
	Short: "Analyze one or more CSV exports",
	Long: `Analyze runs all three analyzers over the first file. Additional
files are treated as extra timeframes of the same symbol and
contribute support/resistance levels to the cross-timeframe
confluence pass.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, opts, err := loadOptions()
		if err != nil {
			return err
		}

		primary, err := ingest.LoadCSV(args[0])
		if err != nil {
			return err
		}
		if !primary.Quality.Valid() {
			return fmt.Errorf("data quality too low (score %.2f): %s",
				primary.Quality.Score, strings.Join(primary.Quality.Errors, "; "))
		}

		var extras []*ingest.ParsedSeries
		for _, path := range args[1:] {
			extra, err := ingest.LoadCSV(path)
			if err != nil {
				return err
			}
			if !extra.Quality.Valid() {
				log.Warn().Str("file", path).Float64("score", extra.Quality.Score).
					Msg("skipping extra timeframe with low data quality")
				continue
			}
			extras = append(extras, extra)
		}

		rep := report.Build(primary, extras, opts)

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		jsonPath := filepath.Join(outDir, stem+"_analysis.json")
		if err := rep.WriteJSON(jsonPath); err != nil {
			return err
		}
		log.Info().Str("path", jsonPath).Msg("json report written")
		if markdown {
			mdPath := filepath.Join(outDir, stem+"_analysis.md")
			if err := rep.WriteMarkdown(mdPath); err != nil {
				return err
			}
			log.Info().Str("path", mdPath).Msg("markdown report written")
		}

		if !noRecord {
			rec, err := openRecorder(cfg)
			if err != nil {
				return err
			}
			defer rec.Close()
			if err := rec.RecordRun(rep.RunRecord(args[0])); err != nil {
				log.Error().Err(err).Msg("record run")
			}
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze configured CSV files on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, opts, err := loadOptions()
		if err != nil {
			return err
		}
		if len(cfg.Watch.Files) == 0 {
			return fmt.Errorf("watch.files is empty; nothing to watch")
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		rec, err := openRecorder(cfg)
		if err != nil {
			return err
		}
		defer rec.Close()

		ctx := cmd.Context()
		sched := scheduler.NewScheduler(ctx, cfg.Watch.Files, opts, outDir, *cfg.Output.Markdown, rec)
		if err := sched.Register(cfg.Watch.Cron); err != nil {
			return err
		}

		sched.RunNow()
		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [SYMBOL]",
	Short: "Show recent analysis runs from the run database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		defer rec.Close()

		symbol := ""
		if len(args) > 0 {
			symbol = strings.ToUpper(args[0])
		}
		runs, err := rec.RecentRuns(symbol, 20)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-8s %-5s price=%.2f gaps=%d(%d open) levels=%d zones=%d(%d fresh) quality=%.2f\n",
				r.GeneratedAt.Format("2006-01-02 15:04"), r.Symbol, r.Timeframe,
				r.CurrentPrice, r.GapCount, r.UnfilledGaps,
				r.LevelCount, r.ZoneCount, r.FreshZones, r.QualityScore)
		}
		return nil
	},
}

func loadOptions() (*config.Config, report.Options, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, report.Options{}, err
	}

	// Flags passed on the command line beat the config file.
	if minGapPct > 0 {
		cfg.Gaps.MinGapPct = minGapPct
	}
	if sensitivity != "" {
		cfg.Levels.Sensitivity = sensitivity
	}
	if err := cfg.Validate(); err != nil {
		return nil, report.Options{}, err
	}
	if outDir == "" {
		outDir = cfg.Output.Dir
	}

	opts := report.Options{
		Gaps: analyzer.GapOptions{
			MinGapPct:       cfg.Gaps.MinGapPct,
			IncludeBodyGaps: *cfg.Gaps.IncludeBodyGaps,
		},
		Levels: analyzer.LevelOptions{
			LookbackBars:        cfg.Levels.LookbackBars,
			SwingWindow:         cfg.Levels.SwingWindow,
			Sensitivity:         cfg.Levels.Sensitivity,
			RoundNumberInterval: cfg.Levels.RoundNumberInterval,
			RoundNumberCount:    5,
		},
		Zones: analyzer.ZoneOptions{
			MinMovePct:        cfg.Zones.MinMovePct,
			ConsolidationBars: cfg.Zones.ConsolidationBars,
			VolumeThreshold:   cfg.Zones.VolumeThreshold,
		},
		Confluence: cfg.Levels.ConfluencePct,
	}
	return cfg, opts, nil
}

func openRecorder(cfg *config.Config) (recorder.Recorder, error) {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder(), nil
	}
	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("sqlite unavailable, run history disabled")
		return recorder.NewNoopRecorder(), nil
	}
	return rec, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	rootCmd.PersistentFlags().BoolVar(&markdown, "markdown", true, "also write a markdown report")

	analyzeCmd.Flags().Float64Var(&minGapPct, "min-gap-pct", 0, "minimum gap size percent (overrides config)")
	analyzeCmd.Flags().StringVar(&sensitivity, "sensitivity", "", "level merge sensitivity: low, medium, high")
	analyzeCmd.Flags().BoolVar(&noRecord, "no-record", false, "skip writing run history to sqlite")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
