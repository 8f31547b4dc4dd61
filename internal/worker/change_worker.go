package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subcal/internal/amqp"
	"subcal/internal/calendar"
	"subcal/internal/metrics"
	"subcal/internal/sheets"
)

// Projector is the part of services.CalendarService the worker needs.
type Projector interface {
	Project(ctx context.Context, userID string, year, month int) (calendar.Projection, error)
}

// ChangeWorker re-projects a user's current month whenever their
// subscriptions change and pushes the result to the exporter.
type ChangeWorker struct {
	projector Projector
	exporter  sheets.CalendarExporter
	now       func() time.Time
}

// NewChangeWorker builds a worker. exporter may be nil, in which case the
// month is projected and logged only.
func NewChangeWorker(projector Projector, exporter sheets.CalendarExporter) *ChangeWorker {
	return &ChangeWorker{projector: projector, exporter: exporter, now: time.Now}
}

// HandleChange processes one subscription change message from AMQP.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.SubscriptionChangeMessage) (err error) {
	defer func() { metrics.IncChangeMessage(err) }()

	if msg.UserID == "" {
		// Nothing to re-project; acking drops the message.
		slog.WarnContext(ctx, "Change message without user id", "subscription_id", msg.SubscriptionID)
		return nil
	}

	now := w.now()
	year, month := now.Year(), int(now.Month())

	slog.InfoContext(ctx, "Processing subscription change",
		"subscription_id", msg.SubscriptionID,
		"user_id", msg.UserID,
		"action", msg.Action,
		"year", year,
		"month", month)

	p, err := w.projector.Project(ctx, msg.UserID, year, month)
	if err != nil {
		return fmt.Errorf("project month: %w", err)
	}

	if w.exporter == nil {
		slog.DebugContext(ctx, "No exporter configured, skipping export",
			"user_id", msg.UserID,
			"events", len(p.Events))
		return nil
	}

	ref, err := w.exporter.ExportMonth(ctx, msg.UserID, p)
	metrics.IncExport(err)
	if err != nil {
		return fmt.Errorf("export month: %w", err)
	}

	slog.InfoContext(ctx, "Month exported after change",
		"user_id", msg.UserID,
		"ref", ref,
		"events", len(p.Events))
	return nil
}
