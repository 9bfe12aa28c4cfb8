package httpapi

import (
	"context"
	"errors"
	"net/http"

	"restoassist/internal/resource"
)

// statusForError maps a dependency error to the HTTP status the client sees.
// Anything unclassified is an internal error.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch resource.KindOf(err) {
	case resource.KindUnconfigured, resource.KindUnavailable, resource.KindResourceExhausted:
		return http.StatusServiceUnavailable
	case resource.KindUpstreamFailure, resource.KindMalformedReply:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage never echoes the underlying error text; it may carry
// driver or upstream details.
func publicErrorMessage(err error) string {
	switch resource.KindOf(err) {
	case resource.KindUnconfigured:
		return "dependency not configured"
	case resource.KindUnavailable:
		return "dependency unavailable"
	case resource.KindResourceExhausted:
		return "server busy, retry later"
	case resource.KindUpstreamFailure:
		return "upstream service failed"
	case resource.KindMalformedReply:
		return "upstream service returned an invalid reply"
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return "request timed out"
		}
		return "internal error"
	}
}

func (s server) writeDependencyError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logError(r.Context(), s.log, op, err)
	} else {
		logWarn(r.Context(), s.log, op, err)
	}
	kind := resource.KindOf(err)
	if kind == resource.KindResourceExhausted {
		w.Header().Set("Retry-After", "1")
	}
	body := map[string]any{"ok": false, "error": publicErrorMessage(err)}
	if kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}
