package v1

import (
	"net/http"
	"strings"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// idempotencyKey returns the trimmed Idempotency-Key header. An over-long key
// is rejected with 400 and ok=false.
func idempotencyKey(w http.ResponseWriter, r *http.Request) (key string, ok bool) {
	key = strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		badRequest(w, headerIdempotencyKey+" must be at most 128 characters")
		return "", false
	}
	return key, true
}
