package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	Weekly    Cycle = "weekly"
	Monthly   Cycle = "monthly"
	Quarterly Cycle = "quarterly"
	Yearly    Cycle = "yearly"
)

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
)

type (
	// Cycle is the recurrence interval of a subscription.
	Cycle string

	// Status is the lifecycle state of a subscription.
	Status string

	// Date is a calendar date at UTC midnight.
	Date struct {
		time.Time
	}

	Subscription struct {
		ID         string
		UserID     string
		Name       string
		Cycle      Cycle
		BillingDay int  // 1-31, 0 when unknown
		StartDate  Date // zero when unknown
		Amount     decimal.Decimal
		Currency   string
		Status     Status
		Category   string
		Notes      string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	NotificationPreference struct {
		UserID       string
		Enabled      bool
		DaysBefore   int
		LastNotified Date
	}

	ExchangeRate struct {
		Base      string
		Quote     string
		Rate      decimal.Decimal
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCycle      = errors.New("invalid billing cycle")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidBillingDay = errors.New("billing day must be between 1 and 31")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrInvalidRate       = errors.New("exchange rate must be positive")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyUser         = errors.New("empty user id")
	ErrMissingStartDate  = errors.New("missing start date")
	ErrInvalidStartDate  = errors.New("invalid start date")
	ErrNameTooLong       = errors.New("name too long (max 200 characters)")
	ErrInvalidDaysBefore = errors.New("invalid days before")
)

// MaxDaysBefore bounds how far ahead a reminder can be scheduled.
const MaxDaysBefore = 30

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date, keeping the wall-clock day of t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month() && d.Day() == o.Day()
}

// String formats the date as YYYY-MM-DD, or "" when zero.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// ParseCycle normalizes a user supplied cycle name.
func ParseCycle(s string) (Cycle, error) {
	c := Cycle(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	return c, nil
}

func (c Cycle) Valid() bool {
	switch c {
	case Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// ParseStatus normalizes a user supplied status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCanceled:
		return true
	}
	return false
}

// NormalizeCurrency returns the canonical form of an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.TrimSpace(code)
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}

// validCurrency accepts only codes already in canonical form.
func validCurrency(code string) error {
	norm, err := NormalizeCurrency(code)
	if err != nil {
		return err
	}
	if norm != code {
		return fmt.Errorf("%w: %q is not normalized", ErrInvalidCurrency, code)
	}
	return nil
}

// IsActive reports whether the subscription takes part in projections.
func (s Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return ErrNameTooLong
	}
	if !s.Cycle.Valid() {
		return ErrInvalidCycle
	}
	if s.BillingDay < 1 || s.BillingDay > 31 {
		return ErrInvalidBillingDay
	}
	if s.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStartDate, err)
	}
	if !s.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := validCurrency(s.Currency); err != nil {
		return err
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (p NotificationPreference) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUser
	}
	if p.DaysBefore < 0 || p.DaysBefore > MaxDaysBefore {
		return fmt.Errorf("%w: must be between 0 and %d", ErrInvalidDaysBefore, MaxDaysBefore)
	}
	return nil
}

func (r ExchangeRate) Validate() error {
	if err := validCurrency(r.Base); err != nil {
		return err
	}
	if err := validCurrency(r.Quote); err != nil {
		return err
	}
	if !r.Rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}
