package httpapi

import (
	"github.com/rs/zerolog"

	"restoassist/internal/gateway"
)

type Deps struct {
	Gateway *gateway.Gateway
	Logger  zerolog.Logger

	Version     string
	HasDatabase bool
	HasOpenAI   bool

	ChatMaxTokens      int
	RateLimitPerMinute int
	CORSOrigins        []string
}
