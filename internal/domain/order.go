package domain

import "strings"

// OrderItem is one line of an order request.
type OrderItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderRequest is built from the cart for a single checkout attempt.
type OrderRequest struct {
	Email      string      `json:"email"`
	Items      []OrderItem `json:"items"`
	TotalCents int64       `json:"total_cents"`
}

// OrderConfirmation is what the order service replies with.
type OrderConfirmation struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// OrderResult is returned to the shopper after a successful checkout.
type OrderResult struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
}

// IsValidEmail performs a basic syntactic check: exactly one '@', non-empty
// local and domain parts, and a '.' in the domain.
func IsValidEmail(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	local, host, _ := strings.Cut(email, "@")
	if local == "" || host == "" {
		return false
	}
	return strings.Contains(host, ".")
}
