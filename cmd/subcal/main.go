package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"subcal/internal/cache"
	"subcal/internal/cli"
	apphttp "subcal/internal/http"
	"subcal/internal/log"
	"subcal/internal/metrics"
	"subcal/internal/middleware/ratelimit"
	"subcal/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	metrics.Init()

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

	// Keep the interfaces nil when the broker is unavailable.
	var (
		changes   services.ChangePublisher
		reminders services.ReminderPublisher
	)
	if client := cli.ConnectAMQP(logger.WithComponent(log.ComponentAMQP), cfg); client != nil {
		defer client.Close()
		changes, reminders = client, client
	} else {
		logger.Info("Subscription changes will not be announced")
	}

	calendar := services.NewCalendarService(repo, provider, cfg.DisplayCurrency, cfg.ForeignCurrency)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Subscriptions: services.NewSubscriptionService(repo, changes),
		Calendar:      calendar,
		Reminders:     services.NewReminderProcessor(repo, calendar, reminders),
		Rates:         provider,
		Store:         repo,
	}, apphttp.Options{
		Locale: cfg.LocaleTag(),
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Logger: logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting subcal server",
		"port", cfg.Port,
		"display_currency", cfg.DisplayCurrency,
		"locale", cfg.LocaleTag().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		return 1
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
	return 0
}
