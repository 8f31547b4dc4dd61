package worker

import (
	"context"
	"log/slog"
	"time"
)

// ReminderRunner is implemented by services.ReminderProcessor.
type ReminderRunner interface {
	ProcessDueReminders(ctx context.Context, now time.Time) (int, error)
}

// RunReminders processes reminders once immediately and then on every tick
// until ctx is cancelled.
func RunReminders(ctx context.Context, runner ReminderRunner, interval time.Duration) error {
	slog.InfoContext(ctx, "Reminder processor configured", "interval", interval)

	runOnce(ctx, runner, time.Now(), "initial")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			runOnce(ctx, runner, now, "periodic")
		}
	}
}

func runOnce(ctx context.Context, runner ReminderRunner, now time.Time, kind string) {
	count, err := runner.ProcessDueReminders(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Reminder processing failed", "run", kind, "error", err)
		return
	}
	slog.InfoContext(ctx, "Reminder processing complete", "run", kind, "sent", count)
}
