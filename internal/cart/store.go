// Package cart holds the shopper's cart: an ordered set of lines keyed by
// product id, with derived totals and best-effort persistence.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DefaultStorageKey is the key carts are persisted under when no session
// scoping is applied.
const DefaultStorageKey = "storefront_cart"

var errRestorePending = errors.New("stored cart not restored yet")

// Store owns one cart. All methods are safe for concurrent use; no lock is
// held while talking to the key-value store.
type Store struct {
	mu    sync.RWMutex
	lines []domain.CartLine

	// pending is set while a Restore could not read the stored cart. Until a
	// later Restore succeeds, Persist must not overwrite what is stored.
	pending bool

	key    string
	kv     repository.KeyValueStore
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates an empty cart persisted under key in kv.
func NewStore(kv repository.KeyValueStore, key string, logger *slog.Logger) *Store {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Store{
		key:    key,
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// AddItem adds one unit of p. The product's title, price and image are
// copied into the line the first time it is added.
func (s *Store) AddItem(p *domain.Product) error {
	if p == nil {
		return domain.InvalidProduct("product is required")
	}
	if p.ID == "" {
		return domain.InvalidProduct("product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.lines[i].Quantity = addClamped(s.lines[i].Quantity, 1)
		return nil
	}

	s.lines = append(s.lines, domain.CartLine{
		ProductID:      p.ID,
		Title:          p.Title,
		UnitPriceCents: p.PriceCents,
		Quantity:       1,
		ImageURL:       p.ImageURL,
	})
	return nil
}

// ChangeQuantity adds delta to the line's quantity and removes the line when
// the result is zero or less. Unknown product ids are ignored.
func (s *Store) ChangeQuantity(productID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}

	q := addClamped(s.lines[i].Quantity, delta)
	if q <= 0 {
		s.removeAt(i)
		return
	}
	s.lines[i].Quantity = q
}

// RemoveItem drops the line for productID if present.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(productID); i >= 0 {
		s.removeAt(i)
	}
}

// LineCount returns the sum of quantities.
func (s *Store) LineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	for _, l := range s.lines {
		n = addClamped(n, l.Quantity)
	}
	return n
}

// TotalCents returns the sum of unit price times quantity, saturating at
// math.MaxInt64.
func (s *Store) TotalCents() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, l := range s.lines {
		total = domain.AddCents(total, l.LineTotalCents())
	}
	return total
}

// Items returns a copy of the lines in display order with line totals.
func (s *Store) Items() []domain.LineView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LineView, len(s.lines))
	for i, l := range s.lines {
		out[i] = domain.LineView{CartLine: l, LineTotalCents: l.LineTotalCents()}
	}
	return out
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
}

// Persist writes the cart to the key-value store. Failures are logged and
// counted, never returned. While an earlier Restore failed to read the stored
// cart, Persist retries it first and skips the write if it fails again.
func (s *Store) Persist(ctx context.Context) {
	if s.restorePending() && !s.Restore(ctx) {
		s.persistenceFailed(ctx, "persist", domain.Persistence("write cart", errRestorePending))
		return
	}

	s.mu.RLock()
	snap := domain.CartSnapshot{
		Items:   append([]domain.CartLine{}, s.lines...),
		SavedAt: s.now().UTC(),
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		s.persistenceFailed(ctx, "persist", domain.Persistence("marshal cart", err))
		return
	}

	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.persistenceFailed(ctx, "persist", domain.Persistence("write cart", err))
	}
}

// Restore replaces the cart with the persisted snapshot. The cart is left
// untouched when nothing is stored or the snapshot cannot be parsed. Lines
// with an empty id, a non-positive quantity, a negative price or a repeated
// id are dropped.
//
// Restore reports whether the stored state is settled: loaded, absent or
// unparseable. It returns false when the store could not be read; the cart is
// then marked pending and the lines added meanwhile are merged on top of the
// snapshot once a later Restore succeeds.
func (s *Store) Restore(ctx context.Context) bool {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.settle()
			return true
		}
		s.mu.Lock()
		s.pending = true
		s.mu.Unlock()
		s.persistenceFailed(ctx, "restore", domain.Persistence("read cart", err))
		return false
	}

	var snap domain.CartSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.settle()
		s.persistenceFailed(ctx, "restore", domain.Persistence("parse cart", err))
		return true
	}

	lines := make([]domain.CartLine, 0, len(snap.Items))
	seen := make(map[string]struct{}, len(snap.Items))
	for _, l := range snap.Items {
		if _, dup := seen[l.ProductID]; dup || l.ProductID == "" || l.Quantity <= 0 || l.UnitPriceCents < 0 {
			s.logger.WarnContext(ctx, "dropping invalid cart line",
				slog.String("key", s.key),
				slog.String("product_id", l.ProductID),
				slog.Int("quantity", l.Quantity),
			)
			continue
		}
		seen[l.ProductID] = struct{}{}
		lines = append(lines, l)
	}

	s.mu.Lock()
	if s.pending {
		for _, l := range s.lines {
			if i := indexIn(lines, l.ProductID); i >= 0 {
				lines[i].Quantity = addClamped(lines[i].Quantity, l.Quantity)
				continue
			}
			lines = append(lines, l)
		}
		s.pending = false
	}
	s.lines = lines
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "cart restored",
		slog.String("key", s.key),
		slog.Int("lines", len(lines)),
	)
	return true
}

func (s *Store) settle() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

func (s *Store) restorePending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

func (s *Store) persistenceFailed(ctx context.Context, op string, err error) {
	persistenceFailures.WithLabelValues(op).Inc()
	s.logger.ErrorContext(ctx, "cart persistence failed",
		slog.String("op", op),
		slog.String("key", s.key),
		slog.String("error", err.Error()),
	)
}

// indexOf must be called with mu held.
func (s *Store) indexOf(productID string) int {
	return indexIn(s.lines, productID)
}

func indexIn(lines []domain.CartLine, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}

// addClamped adds without wrapping around on overflow.
func addClamped(q, delta int) int {
	switch {
	case delta > 0 && q > math.MaxInt-delta:
		return math.MaxInt
	case delta < 0 && q < math.MinInt-delta:
		return math.MinInt
	}
	return q + delta
}
