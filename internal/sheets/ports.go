package sheets

import (
	"context"
	"fmt"

	"subcal/internal/calendar"
)

// CalendarExporter publishes a user's projected month to an outbound sink.
type CalendarExporter interface {
	// ExportMonth replaces the user's rows for p.Year/p.Month and returns a
	// reference to the written range.
	ExportMonth(ctx context.Context, userID string, p calendar.Projection) (ref string, err error)
}

// SheetName is the tab a month is exported to, e.g. "2025-01 Payments".
func SheetName(year, month int) string {
	return fmt.Sprintf("%04d-%02d Payments", year, month)
}
