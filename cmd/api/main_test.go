package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"restoassist/internal/config"
	"restoassist/internal/resource"
)

func TestInitDependenciesWithoutConfiguration(t *testing.T) {
	pool, client := initDependencies(context.Background(), config.Config{}, zerolog.Nop())
	defer pool.Close()

	assert.Equal(t, resource.StateUnconfigured, pool.State())
	assert.Equal(t, resource.StateUnconfigured, client.State())
}

func TestInitDependenciesFailIndependently(t *testing.T) {
	var calls atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer api.Close()

	cfg := config.Config{
		DatabaseURL:      "postgresql://resto@127.0.0.1:1/resto?connect_timeout=2",
		DBMaxConns:       2,
		DBConnectRetries: 0,
		DBRetryBaseDelay: time.Millisecond,
		DBAcquireTimeout: 50 * time.Millisecond,
		OpenAIAPIKey:     "sk-invalid",
		OpenAIBaseURL:    api.URL + "/v1",
		OpenAITimeout:    5 * time.Second,
	}

	pool, client := initDependencies(context.Background(), cfg, zerolog.Nop())
	defer pool.Close()

	assert.Equal(t, resource.StateUnavailable, pool.State())
	assert.Equal(t, resource.StateUnavailable, client.State())
	assert.Equal(t, int64(1), calls.Load(), "the key is verified once")
}
