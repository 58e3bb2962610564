package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"clubscan/config"
	"clubscan/models"
	"clubscan/services"
	"clubscan/storage"
	"clubscan/utils"
)

// Exit codes per the process contract: configuration, authentication,
// navigation and export failures are distinguishable to the caller.
const (
	exitOK         = 0
	exitConfig     = 2
	exitAuth       = 3
	exitNavigation = 4
	exitExport     = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== clubscan availability check starting ===")

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		return exitConfig
	}

	criteria, err := cfg.Criteria()
	if err != nil {
		logger.Error("Invalid search criteria: %v", err)
		return exitConfig
	}

	logger.Info("Criteria: destination %q | units %v | guests %d | %s to %s | min nights %d",
		criteria.Destination, criteria.UnitSizes, criteria.Guests,
		criteria.CheckIn.Format("2006-01-02"), criteria.CheckOut.Format("2006-01-02"),
		criteria.MinNights)

	var history *storage.PostgresWriter
	if cfg.SnapshotDBEnabled() {
		history, err = storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Snapshot database unavailable, continuing without history: %v", err)
		} else {
			defer history.Close()
		}
	}

	pipeline := storage.NewPipeline(logger)
	runner := services.NewRunner(cfg, logger, pipeline, history)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, exportErr := runner.Run(ctx, services.RunSpec{
		Criteria:     criteria,
		Destinations: cfg.Destinations(),
	})

	services.BuildSummary(result).Print(logger)

	for _, a := range result.Artifacts {
		logger.Info("Diagnostics: %s / %s", a.ScreenshotPath, a.DumpPath)
	}

	switch result.Status {
	case models.StatusSuccess, models.StatusPartialSuccess:
		if exportErr != nil {
			logger.Error("All export destinations failed: %v", exportErr)
			return exitExport
		}
		if result.Status == models.StatusPartialSuccess {
			logger.Warn("Run %s is PARTIAL: pagination abandoned, snapshot is incomplete", result.RunID)
		}
		logger.Info("Done. %d records exported.", len(result.Records))
		return exitOK
	default:
		logger.Error("Run %s failed: %s", result.RunID, result.Reason)
		if result.TerminalState == models.StateAuthFailed {
			return exitAuth
		}
		return exitNavigation
	}
}
