package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"restoassist/internal/gateway"
)

const maxRequestBodyBytes = 64 << 10

type server struct {
	gw  *gateway.Gateway
	log zerolog.Logger

	version     string
	hasDatabase bool
	hasOpenAI   bool

	chatMaxTokens int
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readOptionalJSON decodes an optional JSON body. Unknown fields are ignored
// and a missing or malformed body yields the zero payload, so callers apply
// their own defaults. Only an oversized body is rejected.
func readOptionalJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var dst T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	err := json.NewDecoder(r.Body).Decode(&dst)
	if err == nil {
		return dst, true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "error": "request body too large"})
		return dst, false
	}
	var zero T
	return zero, true
}
