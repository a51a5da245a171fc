package domain

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Machine-readable error codes.
const (
	CodeInvalidProduct     = "INVALID_PRODUCT"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeEmptyCart          = "EMPTY_CART"
	CodeInvalidTotal       = "INVALID_TOTAL"
	CodeCheckoutInProgress = "CHECKOUT_IN_PROGRESS"
	CodeOrderSubmission    = "ORDER_SUBMISSION_FAILED"
	CodePersistence        = "PERSISTENCE_ERROR"
)

// Cart and checkout error kinds. Match them with errors.Is.
var (
	ErrInvalidProduct     = errors.New("invalid product")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTotal       = errors.New("invalid order total")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOrderSubmission    = errors.New("order submission failed")
	ErrPersistence        = errors.New("cart persistence failed")
)

// InvalidProduct is returned when a product is missing or has no id.
func InvalidProduct(message string) *apperrors.AppError {
	return apperrors.New(CodeInvalidProduct, http.StatusBadRequest, message, ErrInvalidProduct)
}

// InvalidEmail is returned by checkout for a malformed email.
func InvalidEmail(email string) *apperrors.AppError {
	return apperrors.New(CodeInvalidEmail, http.StatusBadRequest,
		fmt.Sprintf("%q is not a valid email address", email), ErrInvalidEmail)
}

// EmptyCart is returned when checking out with no lines.
func EmptyCart() *apperrors.AppError {
	return apperrors.New(CodeEmptyCart, http.StatusUnprocessableEntity, "cart is empty", ErrEmptyCart)
}

// InvalidTotal is returned when the cart total is not positive.
func InvalidTotal(total int64) *apperrors.AppError {
	return apperrors.New(CodeInvalidTotal, http.StatusUnprocessableEntity,
		fmt.Sprintf("order total must be positive, got %d", total), ErrInvalidTotal)
}

// CheckoutInProgress is returned when a submission is already outstanding.
func CheckoutInProgress() *apperrors.AppError {
	return apperrors.New(CodeCheckoutInProgress, http.StatusConflict,
		"a checkout is already in progress", ErrCheckoutInProgress)
}

// OrderSubmission wraps the failure of the order call. Both ErrOrderSubmission
// and the cause match with errors.Is.
func OrderSubmission(cause error) *apperrors.AppError {
	return apperrors.New(CodeOrderSubmission, http.StatusBadGateway,
		"order could not be placed", &submissionError{cause: cause})
}

// Persistence wraps a storage failure. It never leaves the cart package.
func Persistence(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, cause)
}

type submissionError struct {
	cause error
}

func (e *submissionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrOrderSubmission, e.cause)
}

func (e *submissionError) Unwrap() []error {
	return []error{ErrOrderSubmission, e.cause}
}
