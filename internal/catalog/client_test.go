package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

var sampleProducts = []domain.Product{
	{ID: "A", Title: "Alpha", PriceCents: 1000, ImageURL: "https://img.example.com/a.jpg"},
	{ID: "B", Title: "Beta", PriceCents: 500},
}

type fakeCatalog struct {
	mu       sync.Mutex
	products []domain.Product
	fail     bool
	hits     atomic.Int32
	lists    atomic.Int32
	gets     atomic.Int32
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"boom"}}`))
		return
	}

	switch r.URL.Path {
	case "/api/v1/products":
		f.lists.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": f.products})
	case "/api/v1/products/Z":
		f.gets.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": domain.Product{ID: "Z", Title: "Zeta", PriceCents: 42}})
	default:
		f.gets.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"product not found"}}`))
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestClient(t *testing.T, ttl time.Duration) (*Client, *fakeCatalog, *clock) {
	t.Helper()
	fake := &fakeCatalog{products: sampleProducts}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultCircuitBreakerConfig("catalog-test-" + t.Name())
	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 4}),
		cfg, logger.Discard(),
	).WithFallback(CircuitOpenFallback)

	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewClient(cb, srv.URL+"/", ttl, logger.Discard())
	c.now = clk.Now
	return c, fake, clk
}

func TestClient_List(t *testing.T) {
	c, fake, _ := newTestClient(t, time.Minute)

	products, err := c.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, sampleProducts, products)
	assert.Equal(t, int32(1), fake.lists.Load())
}

func TestClient_List_ServesCacheWithinTTL(t *testing.T) {
	c, fake, clk := newTestClient(t, time.Minute)
	ctx := context.Background()

	_, err := c.List(ctx)
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	_, err = c.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), fake.lists.Load())
}

func TestClient_List_RefreshIsThrottled(t *testing.T) {
	c, fake, clk := newTestClient(t, time.Hour)
	ctx := context.Background()

	_, err := c.List(ctx)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.lists.Load())

	clk.Advance(2 * time.Hour)
	for i := 0; i < 5; i++ {
		products, err := c.List(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 2)
	}
	assert.Equal(t, int32(2), fake.lists.Load())
}

func TestClient_List_StaleOnRefreshFailure(t *testing.T) {
	c, fake, clk := newTestClient(t, time.Minute)
	ctx := context.Background()

	_, err := c.List(ctx)
	require.NoError(t, err)

	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()
	clk.Advance(2 * time.Minute)

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleProducts, products)
}

func TestClient_List_ColdFailure(t *testing.T) {
	c, fake, _ := newTestClient(t, time.Minute)
	fake.fail = true

	_, err := c.List(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadGateway)
}

func TestClient_ColdFailureIsThrottled(t *testing.T) {
	c, fake, _ := newTestClient(t, time.Hour)
	fake.fail = true
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.List(ctx)
		assert.ErrorIs(t, err, apperrors.ErrBadGateway)
		_, err = c.Get(ctx, "A")
		assert.ErrorIs(t, err, apperrors.ErrBadGateway)
	}

	assert.Equal(t, int32(1), fake.hits.Load())
}

func TestClient_List_ReturnsCopy(t *testing.T) {
	c, _, _ := newTestClient(t, time.Minute)
	ctx := context.Background()

	products, err := c.List(ctx)
	require.NoError(t, err)
	products[0].PriceCents = 1

	again, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), again[0].PriceCents)
}

func TestClient_Get_FromCache(t *testing.T) {
	c, fake, _ := newTestClient(t, time.Minute)

	p, err := c.Get(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, "Alpha", p.Title)
	assert.Equal(t, int32(0), fake.gets.Load())
}

func TestClient_Get_FallsBackToRemote(t *testing.T) {
	c, fake, _ := newTestClient(t, time.Minute)

	p, err := c.Get(context.Background(), "Z")

	require.NoError(t, err)
	assert.Equal(t, int64(42), p.PriceCents)
	assert.Equal(t, int32(1), fake.gets.Load())
}

func TestClient_Get_NotFound(t *testing.T) {
	c, _, _ := newTestClient(t, time.Minute)

	_, err := c.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "product with id missing not found", appErr.Message)
}

func TestClient_Get_EmptyID(t *testing.T) {
	c, _, _ := newTestClient(t, time.Minute)

	_, err := c.Get(context.Background(), "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
