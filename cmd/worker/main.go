package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"restoassist/internal/config"
	"restoassist/internal/db"
	"restoassist/internal/logging"
	"restoassist/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Component(logging.New(cfg.LogLevel, cfg.Env, os.Stderr), "worker")

	if !cfg.HasDatabase() {
		// Nothing to prune without a database.
		log.Info().Msg("worker: no database url configured, exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.RedactedDatabaseURL()).Msg("worker: db")
	}
	defer pool.Close()

	ticker := time.NewTicker(time.Duration(cfg.WorkerTickSeconds) * time.Second)
	defer ticker.Stop()

	log.Info().
		Int("tick_seconds", cfg.WorkerTickSeconds).
		Dur("retention", cfg.ConversationRetention).
		Msg("worker started")

	pruneOnce(ctx, log, pool, cfg.ConversationRetention)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopping")
			return
		case <-ticker.C:
			pruneOnce(ctx, log, pool, cfg.ConversationRetention)
		}
	}
}

func pruneOnce(ctx context.Context, log zerolog.Logger, q db.Querier, retention time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := store.PruneConversations(ctx, q, retention)
	if err != nil {
		log.Warn().Err(err).Msg("worker: prune conversations")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("worker: pruned idle conversations")
	}
}
