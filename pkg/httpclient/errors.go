package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// maxErrorBody caps how much of a failed response body is read.
const maxErrorBody = 1 << 20

// DownstreamErrorResponse mirrors the error envelope written by
// httputil.WriteError, so errors from sibling services keep their code.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is returned for a 5xx response that passed through the circuit
// breaker. It keeps the status so callers can map it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Body)
}

// ParseResponseError reads the body of a non-2xx response and translates it
// into an AppError. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := string(bodyBytes)
	code := ""
	var downstream DownstreamErrorResponse
	if json.Unmarshal(bodyBytes, &downstream) == nil && downstream.Error != nil {
		code = downstream.Error.Code
		message = downstream.Error.Message
	}

	return mapDownstreamError(resp.StatusCode, code, message, serviceName)
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.New("NOT_FOUND", http.StatusNotFound, qualifiedMsg, apperrors.ErrNotFound)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualifiedMsg)
	case status >= 500:
		return apperrors.BadGateway(fmt.Sprintf("%s returned %d: %s", serviceName, status, message))
	default:
		if code == "" {
			code = http.StatusText(status)
		}
		return apperrors.New(code, status, qualifiedMsg, nil)
	}
}

// MapError translates a StatusError produced by the circuit breaker into the
// same AppError ParseResponseError would return. Other errors pass through.
func MapError(err error, serviceName string) error {
	var se *StatusError
	if errors.As(err, &se) {
		return mapDownstreamError(se.StatusCode, "", se.Body, serviceName)
	}
	return err
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
