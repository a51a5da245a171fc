package middleware

import (
	"mime"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// ContentTypeJSON rejects requests that carry a body in anything other than
// application/json with 415.
func ContentTypeJSON() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Method == http.MethodGet || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "request body must be application/json",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
