package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subcal/internal/cache"
	"subcal/internal/cli"
	"subcal/internal/log"
	"subcal/internal/metrics"
	"subcal/internal/services"
	"subcal/internal/sheets"
	gsheet "subcal/internal/sheets/google"
	"subcal/internal/sheets/memory"
	"subcal/internal/worker"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs on every path.
func run() int {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	metrics.Init()

	logger.Info("Starting subcal-worker")

	repo := cli.InitSQLite(logger.WithComponent(log.ComponentStorage), cfg.SQLiteDBPath)
	defer repo.Close()

	caches := cache.NewManager()
	provider := cli.InitRates(cfg, repo, caches)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()
	defer func() {
		st := provider.Cache().Stats()
		logger.Info("Rate cache stats", "hits", st.Hits, "misses", st.Misses, "size", st.Size)
	}()

	client := cli.ConnectAMQP(logger.WithComponent(log.ComponentAMQP), cfg)
	if client == nil {
		logger.Error("The worker needs a reachable AMQP broker")
		return 1
	}
	defer client.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var exporter sheets.CalendarExporter
	if cfg.SheetsEnabled() {
		gs, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.WithComponent(log.ComponentSheets).Error("Failed to initialize Google Sheets exporter", "error", err)
			return 1
		}
		exporter = gs
	} else {
		logger.WithComponent(log.ComponentSheets).Info("Google Sheets disabled - exporting to memory")
		exporter = memory.New()
	}

	calendar := services.NewCalendarService(repo, provider, cfg.DisplayCurrency, cfg.ForeignCurrency)
	changes := worker.NewChangeWorker(calendar, exporter)
	reminders := services.NewReminderProcessor(repo, calendar, client)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeSubscriptionChanges(gctx, changes.HandleChange)
	})
	g.Go(func() error {
		return worker.RunReminders(gctx, reminders, cfg.ReminderInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		return 1
	}
	logger.Info("Worker shutdown complete")
	return 0
}
