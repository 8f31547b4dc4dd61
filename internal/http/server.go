package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"subcal/internal/core"
	"subcal/internal/log"
	"subcal/internal/metrics"
	"subcal/internal/middleware/ratelimit"
	"subcal/internal/middleware/security"
	"subcal/internal/middleware/trace"
	"subcal/internal/services"
)

type (
	// RateUpdater stores exchange rates. rates.Provider implements it.
	RateUpdater interface {
		Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
		Update(ctx context.Context, rate core.ExchangeRate) error
	}

	// Pinger reports whether a backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Deps are the services behind the API.
	Deps struct {
		Subscriptions *services.SubscriptionService
		Calendar      *services.CalendarService
		Reminders     *services.ReminderProcessor
		Rates         RateUpdater
		Store         Pinger
	}

	Options struct {
		Locale         language.Tag
		RateLimit      ratelimit.Config
		TrustedProxies []string
		Logger         *log.Logger
	}
)

type Server struct {
	http.Server
	subs      *services.SubscriptionService
	calendar  *services.CalendarService
	reminders *services.ReminderProcessor
	rates     RateUpdater
	store     Pinger
	locale    language.Tag

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer wires the API routes and the middleware chain:
// security headers, then request tracing, then the per-IP limit on /api/.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	ipx := security.NewIPExtractor()
	for _, cidr := range opts.TrustedProxies {
		if err := ipx.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s := &Server{
		subs:      deps.Subscriptions,
		calendar:  deps.Calendar,
		reminders: deps.Reminders,
		rates:     deps.Rates,
		store:     deps.Store,
		locale:    opts.Locale,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/calendar", s.handleCalendar)
	api.HandleFunc("GET /api/subscriptions", s.handleListSubscriptions)
	api.HandleFunc("POST /api/subscriptions", s.handleCreateSubscription)
	api.HandleFunc("GET /api/subscriptions/{id}", s.handleGetSubscription)
	api.HandleFunc("PUT /api/subscriptions/{id}", s.handleUpdateSubscription)
	api.HandleFunc("DELETE /api/subscriptions/{id}", s.handleDeleteSubscription)
	api.HandleFunc("POST /api/subscriptions/{id}/status", s.handleSetStatus)
	api.HandleFunc("GET /api/rates", s.handleGetRate)
	api.HandleFunc("PUT /api/rates", s.handleUpdateRate)
	api.HandleFunc("GET /api/notifications", s.handleGetNotifications)
	api.HandleFunc("PUT /api/notifications", s.handleUpdateNotifications)

	limited := s.limiter.Middleware(ipx.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:     "rate limit exceeded",
			RequestID: trace.RequestID(r.Context()),
		})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/api/", limited(api))

	var handler http.Handler = mux
	handler = trace.NewMiddleware(logger, ipx.ClientIP).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
