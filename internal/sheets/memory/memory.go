package memory

import (
	"context"
	"errors"
	"sync"

	"subcal/internal/calendar"
	ports "subcal/internal/sheets"
)

type monthKey struct {
	user  string
	year  int
	month int
}

// Store keeps the latest export per user and month.
type Store struct {
	mu      sync.Mutex
	months  map[monthKey][]calendar.PaymentEvent
	exports int
}

var _ ports.CalendarExporter = (*Store)(nil)

func New() *Store {
	return &Store{months: make(map[monthKey][]calendar.PaymentEvent)}
}

func (s *Store) ExportMonth(_ context.Context, userID string, p calendar.Projection) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}
	events := append([]calendar.PaymentEvent(nil), p.Events...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.months[monthKey{userID, p.Year, p.Month}] = events
	s.exports++
	return "mem:" + ports.SheetName(p.Year, p.Month) + ":" + userID, nil
}

// Month returns the last exported events and whether an export happened.
func (s *Store) Month(userID string, year, month int) ([]calendar.PaymentEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, ok := s.months[monthKey{userID, year, month}]
	return events, ok
}

// Exports counts ExportMonth calls.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
