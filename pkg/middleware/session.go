package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// SessionIDHeader identifies the shopper whose cart a request addresses.
const SessionIDHeader = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SessionID reads the session from X-Session-ID, minting a new one when the
// header is absent, and echoes it back. Malformed IDs are rejected with 400.
// The ID is stored with logger.WithSessionID.
func SessionID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionIDHeader)
			if id == "" {
				id = uuid.NewString()
			} else if !sessionIDPattern.MatchString(id) {
				httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "INVALID_SESSION",
						Message:   "X-Session-ID must be 1-64 characters of letters, digits, '-' or '_'",
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
				return
			}

			w.Header().Set(SessionIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), id)))
		})
	}
}
