// Package orderclient places orders with the remote order service.
package orderclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "order-service"

// HTTPDoer is satisfied by httpclient.CircuitBreakerClient.
type HTTPDoer interface {
	PostJSON(ctx context.Context, url string, payload any) (*http.Response, error)
}

// createOrderResponse accepts both a bare reply and one wrapped in a data
// envelope.
type createOrderResponse struct {
	Data *domain.OrderConfirmation `json:"data"`
	domain.OrderConfirmation
}

// Client implements checkout.OrderCreator over HTTP. The underlying client
// must not retry: every CreateOrder call sends exactly one request.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates an order client for baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// CircuitOpenFallback answers for the order service while its breaker is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("order service is temporarily unavailable, please retry shortly")
}

// CreateOrder posts req to the order service.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/api/orders", req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", httpclient.MapError(err, serviceName))
	}

	var body createOrderResponse
	if err := httpclient.DecodeJSON(resp, serviceName, &body); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	conf := body.OrderConfirmation
	if body.Data != nil {
		conf = *body.Data
	}
	if conf.OrderID == "" {
		return nil, apperrors.BadGateway("order service returned no order id")
	}

	c.logger.DebugContext(ctx, "order created",
		slog.String("order_id", conf.OrderID),
		slog.String("status", conf.Status),
	)
	return &conf, nil
}
