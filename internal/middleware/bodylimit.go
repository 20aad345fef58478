package middleware

import (
	"net/http"
)

// PayloadLimitMiddleware caps inbound request bodies. Provider push batches
// are bounded at a few hundred records, so anything far past the cap is junk
// or abuse, not data.
type PayloadLimitMiddleware struct {
	maxBytes int64
}

func NewPayloadLimitMiddleware(maxBytes int64) *PayloadLimitMiddleware {
	return &PayloadLimitMiddleware{maxBytes: maxBytes}
}

func (m *PayloadLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declared length is checked up front; chunked bodies with no
		// declared length are still capped by the reader below.
		if r.ContentLength > m.maxBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes)
		next.ServeHTTP(w, r)
	})
}
