// Package session keeps one cart and checkout workflow per shopper session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/checkout"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/schedule"
)

// Session is the cart and checkout state of one shopper.
type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Workflow

	restoreMu sync.Mutex
	restored  bool
	idle      *schedule.Debouncer

	// lastAccess is guarded by Registry.mu.
	lastAccess time.Time
}

// Config controls how sessions are created and evicted.
type Config struct {
	// KeyPrefix is prepended to the session id to form the storage key.
	KeyPrefix string
	// IdleTimeout evicts a session from memory after this long without
	// access. Zero disables eviction.
	IdleTimeout time.Duration
}

// Registry lazily creates sessions and restores their carts on first use.
type Registry struct {
	cfg    Config
	kv     repository.KeyValueStore
	orders checkout.OrderCreator
	events checkout.EventPublisher
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	now      func() time.Time
}

// NewRegistry creates an empty registry. events may be nil.
func NewRegistry(cfg Config, kv repository.KeyValueStore, orders checkout.OrderCreator, events checkout.EventPublisher, logger *slog.Logger) *Registry {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = cart.DefaultStorageKey
	}
	return &Registry{
		cfg:      cfg,
		kv:       kv,
		orders:   orders,
		events:   events,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for id, creating and restoring it if needed. A
// restore that could not read the stored cart is retried on the next Get.
func (r *Registry) Get(ctx context.Context, id string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = r.newSession(id)
		if !r.closed {
			r.sessions[id] = s
		}
	}
	s.lastAccess = r.now()
	if s.idle != nil {
		s.idle.Trigger()
	}
	r.mu.Unlock()

	r.restore(ctx, s)
	return s
}

// restore loads the stored cart until the store reports a settled state. It
// is not tied to the request: a cancelled request must not leave the session
// half-loaded.
func (r *Registry) restore(ctx context.Context, s *Session) {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()

	if s.restored {
		return
	}
	s.restored = s.Cart.Restore(context.WithoutCancel(ctx))
	r.logger.DebugContext(ctx, "session loaded",
		slog.String("session_id", s.ID),
		slog.Bool("restored", s.restored),
		slog.Int("line_count", s.Cart.LineCount()),
	)
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close persists every in-memory cart and stops idle timers. Sessions
// requested after Close are served but not retained.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if s.idle != nil {
			s.idle.Stop()
		}
		s.Cart.Persist(ctx)
	}
	r.logger.Info("session registry closed", slog.Int("sessions", len(sessions)))
}

func (r *Registry) newSession(id string) *Session {
	store := cart.NewStore(r.kv, r.cfg.KeyPrefix+":"+id, r.logger)
	s := &Session{
		ID:       id,
		Cart:     store,
		Checkout: checkout.NewWorkflow(id, store, r.orders, r.events, r.logger),
	}
	if r.cfg.IdleTimeout > 0 {
		s.idle = schedule.Debounce(r.cfg.IdleTimeout, func() { r.evict(s) })
	}
	return s
}

// evict drops an idle session from memory after persisting its cart. A
// session with a checkout outstanding, or one accessed within the idle
// timeout, is kept and its timer re-armed.
func (r *Registry) evict(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.ID]; !ok || cur != s {
		r.mu.Unlock()
		return
	}
	if r.now().Sub(s.lastAccess) < r.cfg.IdleTimeout || s.Checkout.IsInFlight() {
		s.idle.Trigger()
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	s.Cart.Persist(context.Background())
	r.logger.Debug("idle session evicted", slog.String("session_id", s.ID))
}
