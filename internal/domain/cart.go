package domain

import (
	"math"
	"time"
)

// CartLine is one product's accumulated quantity and snapshotted price.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Title          string `json:"title"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	ImageURL       string `json:"image_url,omitempty"`
}

// LineTotalCents returns unit price times quantity. The product saturates
// at the int64 limits instead of wrapping.
func (l CartLine) LineTotalCents() int64 {
	p, q := l.UnitPriceCents, int64(l.Quantity)
	switch {
	case p == 0 || q == 0:
		return 0
	case p > 0 && q > 0 && q > math.MaxInt64/p:
		return math.MaxInt64
	case p < -1 && q > 0 && q > math.MinInt64/p:
		return math.MinInt64
	}
	return p * q
}

// AddCents adds two amounts, saturating at the int64 limits.
func AddCents(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// LineView is a read-only copy of a cart line with its computed total.
type LineView struct {
	CartLine
	LineTotalCents int64 `json:"line_total_cents"`
}

// CartSnapshot is the persisted form of a cart.
type CartSnapshot struct {
	Items   []CartLine `json:"items"`
	SavedAt time.Time  `json:"saved_at"`
}

// Product is read-only catalog data. Its fields are copied into a CartLine
// when the product is added.
type Product struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	ImageURL   string `json:"image_url,omitempty"`
}
