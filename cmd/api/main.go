package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"restoassist/internal/ai"
	"restoassist/internal/config"
	"restoassist/internal/db"
	"restoassist/internal/gateway"
	"restoassist/internal/httpapi"
	"restoassist/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Env, os.Stderr)

	// Presence only; credentials never reach the log.
	log.Info().
		Str("env", cfg.Env).
		Bool("has_database", cfg.HasDatabase()).
		Str("database", cfg.RedactedDatabaseURL()).
		Bool("has_openai", cfg.HasOpenAI()).
		Str("model", cfg.OpenAIModel).
		Msg("api starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, client := initDependencies(ctx, cfg, log)
	defer pool.Close()

	gw := gateway.New(gateway.Deps{
		Pool:            pool,
		Client:          client,
		Logger:          logging.Component(log, "gateway"),
		HistoryTurns:    cfg.ChatHistoryTurns,
		MaxMessageChars: cfg.ChatMaxMessageChars,
	})

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Gateway:            gw,
			Logger:             logging.Component(log, "httpapi"),
			Version:            cfg.Version,
			HasDatabase:        cfg.HasDatabase(),
			HasOpenAI:          cfg.HasOpenAI(),
			ChatMaxTokens:      cfg.ChatMaxTokens,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			CORSOrigins:        cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Bool("degraded", gw.Health().Degraded()).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("api shutdown")
	}
	log.Info().Msg("api stopped")
}

// initDependencies brings up the pool and the AI client concurrently. The two
// fail independently, so neither failure cancels the other or stops startup:
// both values come back non-nil and report their own state.
func initDependencies(ctx context.Context, cfg config.Config, log zerolog.Logger) (*db.Pool, *ai.Client) {
	var (
		pool   *db.Pool
		client *ai.Client
		wg     sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		pool, err = db.CreatePool(ctx, db.Options{
			DSN:            cfg.DatabaseURL,
			MinConns:       cfg.DBMinConns,
			MaxConns:       cfg.DBMaxConns,
			MaxRetries:     cfg.DBConnectRetries,
			BaseDelay:      cfg.DBRetryBaseDelay,
			AcquireTimeout: cfg.DBAcquireTimeout,
			StrictLeases:   cfg.Development(),
			Logger:         logging.Component(log, "db"),
		})
		if err != nil {
			log.Warn().Err(err).Str("state", pool.State().String()).Msg("database disabled")
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		client, err = ai.Initialize(ctx, ai.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OpenAITimeout,
			Logger:  logging.Component(log, "ai"),
		})
		if err != nil {
			log.Warn().Err(err).Str("state", client.State().String()).Msg("assistant disabled")
		}
	}()
	wg.Wait()

	return pool, client
}
