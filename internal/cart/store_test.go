package cart

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/pkg/logger"
)

// failingKV fails every operation with err.
type failingKV struct {
	err error
}

func (f *failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f *failingKV) Set(context.Context, string, []byte) error   { return f.err }
func (f *failingKV) Delete(context.Context, string) error        { return f.err }

// flakyKV fails the first failReads Get calls, then behaves like kv.
type flakyKV struct {
	*memory.Store
	mu        sync.Mutex
	failReads int
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	if f.failReads > 0 {
		f.failReads--
		f.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.Get(ctx, key)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(memory.NewStore(), "test_cart", logger.Discard())
}

func product(id string, price int64) *domain.Product {
	return &domain.Product{ID: id, Title: "Product " + id, PriceCents: price, ImageURL: "https://img.example.com/" + id + ".jpg"}
}

// assertTotalsConsistent checks that TotalCents and LineCount agree with Items.
func assertTotalsConsistent(t *testing.T, s *Store) {
	t.Helper()
	var total int64
	var count int
	for _, it := range s.Items() {
		assert.Equal(t, it.UnitPriceCents*int64(it.Quantity), it.LineTotalCents)
		assert.Greater(t, it.Quantity, 0)
		total += it.LineTotalCents
		count += it.Quantity
	}
	assert.Equal(t, total, s.TotalCents())
	assert.Equal(t, count, s.LineCount())
}

func TestStore_AddItem_InvalidProduct(t *testing.T) {
	s := newTestStore(t)

	err := s.AddItem(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	err = s.AddItem(&domain.Product{Title: "no id", PriceCents: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	assert.Empty(t, s.Items())
}

func TestStore_AddItem_SameProductAccumulates(t *testing.T) {
	s := newTestStore(t)
	p := product("A", 1000)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.AddItem(p))
	}

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
	assertTotalsConsistent(t, s)
}

func TestStore_AddItem_SnapshotsPrice(t *testing.T) {
	s := newTestStore(t)
	p := product("A", 1000)

	require.NoError(t, s.AddItem(p))
	p.PriceCents = 5000
	p.Title = "renamed"
	require.NoError(t, s.AddItem(p))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(1000), items[0].UnitPriceCents)
	assert.Equal(t, "Product A", items[0].Title)
	assert.Equal(t, int64(2000), s.TotalCents())
}

func TestStore_InsertionOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddItem(product("C", 1)))
	require.NoError(t, s.AddItem(product("A", 1)))
	require.NoError(t, s.AddItem(product("B", 1)))
	require.NoError(t, s.AddItem(product("A", 1)))

	var ids []string
	for _, it := range s.Items() {
		ids = append(ids, it.ProductID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
}

func TestStore_TotalsScenario(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddItem(product("A", 1000)))
	require.NoError(t, s.AddItem(product("A", 1000)))
	require.NoError(t, s.AddItem(product("B", 500)))

	assert.Equal(t, int64(2500), s.TotalCents())
	assert.Equal(t, 3, s.LineCount())
	assertTotalsConsistent(t, s)
}

func TestStore_ChangeQuantity(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		delta   int
		wantQty int
		removed bool
	}{
		{"increment", 2, 3, 5, false},
		{"decrement", 5, -2, 3, false},
		{"to zero removes", 3, -3, 0, true},
		{"below zero removes", 1, -10, 0, true},
		{"zero delta keeps", 2, 0, 2, false},
		{"huge positive clamps", 1, math.MaxInt, math.MaxInt, false},
		{"huge negative removes", 1, math.MinInt, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, s.AddItem(product("A", 10)))
			s.ChangeQuantity("A", tt.start-1)

			s.ChangeQuantity("A", tt.delta)

			items := s.Items()
			if tt.removed {
				assert.Empty(t, items)
				return
			}
			require.Len(t, items, 1)
			assert.Equal(t, tt.wantQty, items[0].Quantity)
		})
	}
}

func TestStore_TotalsSaturateInsteadOfWrapping(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddItem(product("A", 1000)))
	require.NoError(t, s.AddItem(product("B", 1000)))
	s.ChangeQuantity("A", math.MaxInt)
	s.ChangeQuantity("B", math.MaxInt)

	assert.Equal(t, int64(math.MaxInt64), s.TotalCents())
	assert.Equal(t, math.MaxInt, s.LineCount())
	for _, it := range s.Items() {
		assert.Equal(t, int64(math.MaxInt64), it.LineTotalCents)
	}
}

func TestStore_ChangeQuantity_UnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddItem(product("A", 10)))

	s.ChangeQuantity("missing", 5)
	s.ChangeQuantity("missing", -5)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestStore_RemoveItem_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddItem(product("A", 10)))
	require.NoError(t, s.AddItem(product("B", 20)))

	s.RemoveItem("A")
	s.RemoveItem("A")
	s.RemoveItem("missing")

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].ProductID)
	assertTotalsConsistent(t, s)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddItem(product("A", 10)))
	require.NoError(t, s.AddItem(product("B", 20)))

	s.Clear()

	assert.Empty(t, s.Items())
	assert.Equal(t, int64(0), s.TotalCents())
	assert.Equal(t, 0, s.LineCount())
}

func TestStore_ItemsIsACopy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddItem(product("A", 10)))

	items := s.Items()
	items[0].Quantity = 99
	s.RemoveItem("A")

	assert.Equal(t, 99, items[0].Quantity)
	assert.Empty(t, s.Items())
}

func TestStore_PersistRestoreRoundTrip(t *testing.T) {
	kv := memory.NewStore()
	s := NewStore(kv, "k", logger.Discard())

	require.NoError(t, s.AddItem(product("B", 500)))
	require.NoError(t, s.AddItem(product("A", 1000)))
	require.NoError(t, s.AddItem(product("A", 1000)))
	s.Persist(context.Background())

	fresh := NewStore(kv, "k", logger.Discard())
	fresh.Restore(context.Background())

	assert.Equal(t, s.Items(), fresh.Items())
	assert.Equal(t, int64(2500), fresh.TotalCents())
}

func TestStore_Restore_AbsentKeepsState(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddItem(product("A", 10)))

	s.Restore(context.Background())

	assert.Len(t, s.Items(), 1)
}

func TestStore_Restore_UnparseableKeepsState(t *testing.T) {
	kv := memory.NewStore()
	require.NoError(t, kv.Set(context.Background(), "k", []byte("{not json")))
	s := NewStore(kv, "k", logger.Discard())
	require.NoError(t, s.AddItem(product("A", 10)))

	before := testutil.ToFloat64(persistenceFailures.WithLabelValues("restore"))
	s.Restore(context.Background())

	assert.Len(t, s.Items(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(persistenceFailures.WithLabelValues("restore")))
}

func TestStore_Restore_DropsInvalidLines(t *testing.T) {
	kv := memory.NewStore()
	doc := `{"items":[
		{"product_id":"A","title":"a","unit_price_cents":100,"quantity":2},
		{"product_id":"","title":"no id","unit_price_cents":100,"quantity":1},
		{"product_id":"B","title":"zero","unit_price_cents":100,"quantity":0},
		{"product_id":"A","title":"dup","unit_price_cents":999,"quantity":5},
		{"product_id":"C","title":"neg","unit_price_cents":-1,"quantity":1},
		{"product_id":"D","title":"d","unit_price_cents":50,"quantity":1}
	],"saved_at":"2026-01-02T03:04:05Z"}`
	require.NoError(t, kv.Set(context.Background(), "k", []byte(doc)))

	s := NewStore(kv, "k", logger.Discard())
	s.Restore(context.Background())

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, int64(100), items[0].UnitPriceCents)
	assert.Equal(t, "D", items[1].ProductID)
	assertTotalsConsistent(t, s)
}

func TestStore_PersistenceFailuresAreSwallowed(t *testing.T) {
	s := NewStore(&failingKV{err: errors.New("quota exceeded")}, "k", logger.Discard())
	require.NoError(t, s.AddItem(product("A", 10)))

	persistBefore := testutil.ToFloat64(persistenceFailures.WithLabelValues("persist"))
	restoreBefore := testutil.ToFloat64(persistenceFailures.WithLabelValues("restore"))

	assert.NotPanics(t, func() {
		s.Persist(context.Background())
		s.Restore(context.Background())
	})

	assert.Len(t, s.Items(), 1)
	assert.Equal(t, persistBefore+1, testutil.ToFloat64(persistenceFailures.WithLabelValues("persist")))
	assert.Equal(t, restoreBefore+1, testutil.ToFloat64(persistenceFailures.WithLabelValues("restore")))
}

func TestStore_Restore_ReportsSettledState(t *testing.T) {
	kv := memory.NewStore()
	assert.True(t, NewStore(kv, "k", logger.Discard()).Restore(context.Background()))

	require.NoError(t, kv.Set(context.Background(), "k", []byte("{not json")))
	assert.True(t, NewStore(kv, "k", logger.Discard()).Restore(context.Background()))

	assert.False(t, NewStore(&failingKV{err: errors.New("down")}, "k", logger.Discard()).Restore(context.Background()))
}

func TestStore_FailedRestoreDoesNotOverwriteStoredCart(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{Store: memory.NewStore(), failReads: 2}

	seed := NewStore(kv.Store, "k", logger.Discard())
	require.NoError(t, seed.AddItem(product("A", 1000)))
	require.NoError(t, seed.AddItem(product("A", 1000)))
	seed.Persist(ctx)

	s := NewStore(kv, "k", logger.Discard())
	require.False(t, s.Restore(ctx))
	require.NoError(t, s.AddItem(product("B", 500)))

	// The retry inside Persist fails as well, so nothing is written.
	s.Persist(ctx)
	stored := NewStore(kv.Store, "k", logger.Discard())
	stored.Restore(ctx)
	assert.Equal(t, 2, stored.LineCount())

	// The next Persist reads the stored cart and merges the new line on top.
	s.Persist(ctx)
	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "B", items[1].ProductID)
	assert.Equal(t, 3, s.LineCount())

	stored = NewStore(kv.Store, "k", logger.Discard())
	stored.Restore(ctx)
	assert.Equal(t, 3, stored.LineCount())
	assert.Equal(t, int64(2500), stored.TotalCents())
}

func TestStore_PersistWritesDocument(t *testing.T) {
	kv := memory.NewStore()
	s := NewStore(kv, "", logger.Discard())
	require.NoError(t, s.AddItem(product("A", 10)))

	s.Persist(context.Background())

	raw, err := kv.Get(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"product_id":"A"`)
	assert.Contains(t, string(raw), `"saved_at"`)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := newTestStore(t)
	p := product("A", 10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddItem(p)
			_ = s.Items()
			_ = s.TotalCents()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.LineCount())
	assertTotalsConsistent(t, s)
}
