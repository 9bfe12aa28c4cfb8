package httpapi

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func withReqID(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		ev = ev.Str("req_id", reqID)
	}
	return ev
}

func logError(ctx context.Context, log zerolog.Logger, msg string, err error) {
	if err == nil {
		return
	}
	withReqID(ctx, log.Error()).Err(err).Msg("httpapi: " + msg)
}

func logWarn(ctx context.Context, log zerolog.Logger, msg string, err error) {
	withReqID(ctx, log.Warn()).Err(err).Msg("httpapi: " + msg)
}
