// Package catalog reads product data from the remote catalog API and keeps a
// short-lived copy in memory.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/schedule"
)

const serviceName = "catalog-service"

// HTTPDoer is satisfied by httpclient.CircuitBreakerClient.
type HTTPDoer interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

type listResponse struct {
	Data []domain.Product `json:"data"`
}

type getResponse struct {
	Data *domain.Product `json:"data"`
}

// Client serves the product list from a cache refreshed at most once per TTL.
type Client struct {
	http    HTTPDoer
	baseURL string
	ttl     time.Duration
	refresh *schedule.Throttle
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	products  []domain.Product
	byID      map[string]domain.Product
	fetchedAt time.Time
	lastErr   error
}

// NewClient creates a catalog client for baseURL.
func NewClient(doer HTTPDoer, baseURL string, ttl time.Duration, logger *slog.Logger) *Client {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		refresh: schedule.NewThrottle(ttl, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// CircuitOpenFallback answers for the catalog while its breaker is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("product catalog is temporarily unavailable")
}

// List returns all products. A stale cache is served when a refresh is
// throttled or fails. Before the first successful load, a failed load is
// retried at most once per TTL; callers in between get the last error.
func (c *Client) List(ctx context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	cached, fetchedAt, lastErr := c.products, c.fetchedAt, c.lastErr
	c.mu.RUnlock()

	if cached == nil {
		if lastErr != nil && !c.refresh.Allow() {
			return nil, lastErr
		}
		return c.load(ctx)
	}
	if c.now().Sub(fetchedAt) < c.ttl || !c.refresh.Allow() {
		return cloneProducts(cached), nil
	}

	products, err := c.load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "catalog refresh failed, serving cached products",
			slog.Int("products", len(cached)),
			slog.String("error", err.Error()),
		)
		return cloneProducts(cached), nil
	}
	return products, nil
}

// Get returns one product, looking in the cached list first. Products missing
// from the list are fetched individually.
func (c *Client) Get(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	if _, err := c.List(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	p, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return &p, nil
	}

	resp, err := c.http.Get(ctx, c.baseURL+"/api/v1/products/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, httpclient.MapError(err, serviceName))
	}

	var body getResponse
	if err := httpclient.DecodeJSON(resp, serviceName, &body); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	if body.Data == nil || body.Data.ID == "" {
		return nil, apperrors.NotFound("product", id)
	}
	return body.Data, nil
}

// load fetches the list once for all concurrent callers and replaces the cache.
func (c *Client) load(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := c.group.Do("list", func() (any, error) {
		resp, err := c.http.Get(ctx, c.baseURL+"/api/v1/products")
		if err != nil {
			return nil, c.loadFailed(fmt.Errorf("list products: %w", httpclient.MapError(err, serviceName)))
		}

		var body listResponse
		if err := httpclient.DecodeJSON(resp, serviceName, &body); err != nil {
			return nil, c.loadFailed(fmt.Errorf("list products: %w", err))
		}

		products := make([]domain.Product, 0, len(body.Data))
		byID := make(map[string]domain.Product, len(body.Data))
		for _, p := range body.Data {
			if p.ID == "" {
				continue
			}
			products = append(products, p)
			byID[p.ID] = p
		}

		c.mu.Lock()
		c.products = products
		c.byID = byID
		c.fetchedAt = c.now()
		c.lastErr = nil
		c.mu.Unlock()

		c.logger.DebugContext(ctx, "catalog refreshed", slog.Int("products", len(products)))
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneProducts(v.([]domain.Product)), nil
}

// loadFailed records err and spends the refresh token, so the next attempt
// waits a full TTL.
func (c *Client) loadFailed(err error) error {
	c.refresh.Allow()
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func cloneProducts(in []domain.Product) []domain.Product {
	out := make([]domain.Product, len(in))
	copy(out, in)
	return out
}
