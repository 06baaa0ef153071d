package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/newstagger/internal/app"
	"github.com/timmy/newstagger/internal/config"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/logger"
)

func main() {
	// Initialize logger first (LOG_* environment)
	appLogger := logger.NewFromEnv(nil).WithField(logger.FieldComponent, "tagger")
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	date := flag.String("date", "", "Reference date YYYYMMDD; the window ends the day before (default today)")
	daysBack := flag.Int("days-back", -1, "Override source.days_back (0 selects the weekday rule)")
	sourceType := flag.String("source", "", "Override source.type (database, staging)")
	stagingPath := flag.String("staging", "", "Staging JSONL file; implies -source staging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *daysBack >= 0 {
		cfg.Source.DaysBack = *daysBack
	}
	if *stagingPath != "" {
		cfg.Source.Type = "staging"
		cfg.Source.StagingPath = *stagingPath
	} else if *sourceType != "" {
		cfg.Source.Type = *sourceType
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}

	today := time.Now()
	if *date != "" {
		today, err = time.ParseInLocation(domain.SnapDateLayout, *date, time.Local)
		if err != nil {
			appLogger.WithError(err).WithField("date", *date).Fatal("Invalid -date")
		}
	}

	// Cancel dispatch on SIGINT/SIGTERM; records already in flight finish and
	// the table is still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = appLogger.WithContext(ctx)

	components, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer components.Close()

	report, err := components.Batch.Run(ctx, today)
	if err != nil {
		appLogger.WithError(err).Error("Batch failed")
		logger.Sync()
		os.Exit(1)
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldBatchID: report.Job.ID,
		"total":             report.Stats.Total,
		"succeeded":         report.Stats.Succeeded,
		"partial":           report.Stats.Partial,
		"failed":            report.Stats.Failed,
		"canceled":          report.Stats.Canceled,
		"export_path":       report.Job.ExportPath,
		"export_url":        report.Job.ExportURL,
	}).Info("Tagging completed")
}
