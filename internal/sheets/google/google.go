package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"subcal/internal/calendar"
	ports "subcal/internal/sheets"
)

var header = []any{"User", "Date", "Subscriptions", "Count", "Total", "Currency"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.CalendarExporter = (*Client)(nil)

// Options selects the spreadsheet and the service account used to write it.
// CredentialsJSON wins over CredentialsFile; with neither set
// GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	creds, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", opts.SpreadsheetID)
	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID}, nil
}

func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "size", len(inline))
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account file", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm across exports.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ExportMonth rewrites the month tab, keeping other users' rows intact.
func (c *Client) ExportMonth(ctx context.Context, userID string, p calendar.Projection) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if userID == "" {
		return "", errors.New("missing user id")
	}

	sheet := ports.SheetName(p.Year, p.Month)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:F").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rows := mergeRows(resp.Values, userID, eventRows(userID, p.Events))

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, sheet+"!A:F", &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", sheet, err)
	}

	rng := fmt.Sprintf("%s!A1:F%d", sheet, len(rows))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Exported payment month",
		"sheet", sheet,
		"user_id", userID,
		"events", len(p.Events))
	return rng, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet", "title", title)
	return nil
}

func eventRows(userID string, events []calendar.PaymentEvent) [][]any {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		names := make([]string, len(ev.Subscriptions))
		for i, s := range ev.Subscriptions {
			names[i] = s.Name
		}
		rows = append(rows, []any{
			userID,
			ev.Date.String(),
			strings.Join(names, ", "),
			ev.Count(),
			ev.TotalAmount.StringFixed(2),
			ev.Currency,
		})
	}
	return rows
}

// mergeRows drops the header and userID's previous rows from existing and
// returns header + other users' rows + fresh.
func mergeRows(existing [][]any, userID string, fresh [][]any) [][]any {
	out := [][]any{header}
	for i, row := range existing {
		if i == 0 && len(row) > 0 && fmt.Sprint(row[0]) == header[0] {
			continue
		}
		if len(row) == 0 || fmt.Sprint(row[0]) == userID {
			continue
		}
		out = append(out, row)
	}
	return append(out, fresh...)
}
