package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"subcal/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection, used by readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const subscriptionColumns = `id, user_id, name, cycle, billing_day, start_date, amount, currency, status, category, notes, created_at, updated_at`

// CreateSubscription stores s and returns it with its generated id and timestamps.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, string(s.Cycle), nullableDay(s.BillingDay), nullableDate(s.StartDate),
		s.Amount.String(), s.Currency, string(s.Status), s.Category, s.Notes, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"id", s.ID,
		"user_id", s.UserID,
		"name", s.Name,
		"cycle", s.Cycle,
		"amount", s.Amount.String(),
		"currency", s.Currency)

	return s, nil
}

// GetSubscription retrieves a single subscription by id.
func (r *SQLiteRepository) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListSubscriptions returns every subscription of a user, any status.
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	return r.listSubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// ListActiveSubscriptions returns the user's subscriptions that take part in projections.
func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	return r.listSubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND status = 'active' ORDER BY created_at, id`, userID)
}

func (r *SQLiteRepository) listSubscriptions(ctx context.Context, query string, args ...any) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// UpdateSubscription overwrites the editable fields of s.
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET name = ?, cycle = ?, billing_day = ?, start_date = ?, amount = ?, currency = ?,
		    status = ?, category = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, string(s.Cycle), nullableDay(s.BillingDay), nullableDate(s.StartDate), s.Amount.String(),
		s.Currency, string(s.Status), s.Category, s.Notes, s.UpdatedAt, s.ID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	if err := expectOneRow(res, s.ID); err != nil {
		return core.Subscription{}, err
	}
	return r.GetSubscription(ctx, s.ID)
}

// UpdateSubscriptionStatus moves a subscription to status.
func (r *SQLiteRepository) UpdateSubscriptionStatus(ctx context.Context, id string, status core.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if err := expectOneRow(res, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Subscription status updated", "id", id, "status", status)
	return nil
}

// DeleteSubscription removes a subscription permanently.
func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return expectOneRow(res, id)
}

// UpsertExchangeRate stores the latest base->quote rate.
func (r *SQLiteRepository) UpsertExchangeRate(ctx context.Context, rate core.ExchangeRate) error {
	if rate.UpdatedAt.IsZero() {
		rate.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (base, quote, rate, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (base, quote) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		rate.Base, rate.Quote, rate.Rate.String(), rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert exchange rate: %w", err)
	}

	slog.InfoContext(ctx, "Exchange rate stored", "base", rate.Base, "quote", rate.Quote, "rate", rate.Rate.String())
	return nil
}

// GetExchangeRate returns the stored base->quote rate.
func (r *SQLiteRepository) GetExchangeRate(ctx context.Context, base, quote string) (core.ExchangeRate, error) {
	var (
		rateText string
		out      = core.ExchangeRate{Base: base, Quote: quote}
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT rate, updated_at FROM exchange_rates WHERE base = ? AND quote = ?`, base, quote).
		Scan(&rateText, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExchangeRate{}, fmt.Errorf("exchange rate %s/%s: %w", base, quote, ErrNotFound)
	}
	if err != nil {
		return core.ExchangeRate{}, fmt.Errorf("get exchange rate: %w", err)
	}
	out.Rate, err = decimal.NewFromString(rateText)
	if err != nil {
		return core.ExchangeRate{}, fmt.Errorf("parse stored rate %q: %w", rateText, err)
	}
	return out, nil
}

// GetNotificationPreference returns the user's preference, or the disabled
// default when none was saved.
func (r *SQLiteRepository) GetNotificationPreference(ctx context.Context, userID string) (core.NotificationPreference, error) {
	p, err := scanPreference(r.db.QueryRowContext(ctx,
		`SELECT user_id, enabled, days_before, last_notified FROM notification_preferences WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotificationPreference{UserID: userID, DaysBefore: 1}, nil
	}
	if err != nil {
		return core.NotificationPreference{}, fmt.Errorf("get notification preference: %w", err)
	}
	return p, nil
}

// UpsertNotificationPreference saves enabled and days_before, keeping last_notified.
func (r *SQLiteRepository) UpsertNotificationPreference(ctx context.Context, p core.NotificationPreference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, enabled, days_before) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET enabled = excluded.enabled, days_before = excluded.days_before`,
		p.UserID, p.Enabled, p.DaysBefore)
	if err != nil {
		return fmt.Errorf("upsert notification preference: %w", err)
	}
	return nil
}

// ListEnabledNotificationPreferences returns every user with reminders turned on.
func (r *SQLiteRepository) ListEnabledNotificationPreferences(ctx context.Context) ([]core.NotificationPreference, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, enabled, days_before, last_notified FROM notification_preferences WHERE enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query notification preferences: %w", err)
	}
	defer rows.Close()

	var out []core.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkNotified records the date reminders were last processed for a user.
func (r *SQLiteRepository) MarkNotified(ctx context.Context, userID string, day core.Date) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_preferences SET last_notified = ? WHERE user_id = ?`, day.String(), userID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (core.Subscription, error) {
	var (
		s          core.Subscription
		cycle      string
		status     string
		billingDay sql.NullInt64
		startDate  sql.NullString
		amount     string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &cycle, &billingDay, &startDate, &amount,
		&s.Currency, &status, &s.Category, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return core.Subscription{}, err
	}

	s.Cycle = core.Cycle(cycle)
	s.Status = core.Status(status)
	if billingDay.Valid {
		s.BillingDay = int(billingDay.Int64)
	}
	if startDate.Valid {
		// Malformed dates are left zero so projections report them as incomplete.
		if d, err := core.ParseDate(startDate.String); err == nil {
			s.StartDate = d
		}
	}
	if s.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Subscription{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return s, nil
}

func scanPreference(row scanner) (core.NotificationPreference, error) {
	var (
		p    core.NotificationPreference
		last sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.Enabled, &p.DaysBefore, &last); err != nil {
		return core.NotificationPreference{}, err
	}
	if last.Valid && strings.TrimSpace(last.String) != "" {
		if d, err := core.ParseDate(last.String); err == nil {
			p.LastNotified = d
		}
	}
	return p, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullableDay(day int) any {
	if day == 0 {
		return nil
	}
	return day
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}
