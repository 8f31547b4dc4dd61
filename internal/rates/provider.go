// Package rates resolves the exchange rate used to normalize subscription
// amounts into the display currency.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subcal/internal/cache"
	"subcal/internal/core"
	"subcal/internal/storage"
)

// Store is the persistence the provider reads rates from.
type Store interface {
	GetExchangeRate(ctx context.Context, base, quote string) (core.ExchangeRate, error)
	UpsertExchangeRate(ctx context.Context, rate core.ExchangeRate) error
}

// Provider looks rates up in the store behind a TTL cache. When nothing is
// stored the configured default is used.
type Provider struct {
	store    Store
	cache    *cache.LRUCache[decimal.Decimal]
	defaults map[string]decimal.Decimal
}

func NewProvider(store Store, ttl time.Duration) *Provider {
	return &Provider{
		store:    store,
		cache:    cache.NewLRUCache[decimal.Decimal](64, ttl),
		defaults: make(map[string]decimal.Decimal),
	}
}

// SetDefault registers the rate returned when base/quote is not stored.
func (p *Provider) SetDefault(base, quote string, rate decimal.Decimal) {
	p.defaults[key(base, quote)] = rate
}

// Cache exposes the underlying cache so it can be registered for cleanup.
func (p *Provider) Cache() *cache.LRUCache[decimal.Decimal] {
	return p.cache
}

// Rate returns how many quote units one base unit is worth.
func (p *Provider) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	k := key(base, quote)
	if r, ok := p.cache.Get(k); ok {
		return r, nil
	}

	if p.store != nil {
		stored, err := p.store.GetExchangeRate(ctx, base, quote)
		switch {
		case err == nil:
			p.cache.Set(k, stored.Rate)
			return stored.Rate, nil
		case !errors.Is(err, storage.ErrNotFound):
			return decimal.Zero, fmt.Errorf("load rate %s: %w", k, err)
		}
	}

	if r, ok := p.defaults[k]; ok {
		slog.DebugContext(ctx, "Using default exchange rate", "pair", k, "rate", r.String())
		p.cache.Set(k, r)
		return r, nil
	}
	return decimal.Zero, fmt.Errorf("no exchange rate for %s: %w", k, storage.ErrNotFound)
}

// Update stores a new rate and invalidates the cached value.
func (p *Provider) Update(ctx context.Context, rate core.ExchangeRate) error {
	rate.Base, rate.Quote = strings.ToUpper(rate.Base), strings.ToUpper(rate.Quote)
	if err := rate.Validate(); err != nil {
		return err
	}
	if p.store == nil {
		return errors.New("rate store not configured")
	}
	if err := p.store.UpsertExchangeRate(ctx, rate); err != nil {
		return err
	}
	p.cache.Delete(key(rate.Base, rate.Quote))
	return nil
}

func key(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}
