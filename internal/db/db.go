package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the query surface handed to units of work. *Lease, *pgxpool.Pool
// and pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is one connection checked out of a Backend.
type Conn interface {
	Querier
	Ping(ctx context.Context) error
	Release()
}

// Backend is the connection pool underneath a Pool.
type Backend interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// ConnectConfig is what a Connector needs to build a Backend.
type ConnectConfig struct {
	DSN      string
	MinConns int32
	MaxConns int32
}

// Connector builds a Backend. PgxConnector is the production implementation.
type Connector func(ctx context.Context, cfg ConnectConfig) (Backend, error)

// PgxConnector builds a pgxpool-backed Backend.
func PgxConnector(ctx context.Context, cc ConnectConfig) (Backend, error) {
	cfg, err := pgxpool.ParseConfig(cc.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cc.MaxConns > 0 {
		cfg.MaxConns = cc.MaxConns
	}
	if cc.MinConns >= 0 && cc.MinConns <= cfg.MaxConns {
		cfg.MinConns = cc.MinConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	// pgxpool keeps ctx for its MinConns warm-up; the pool outlives startup.
	p, err := pgxpool.NewWithConfig(context.WithoutCancel(ctx), cfg)
	if err != nil {
		return nil, err
	}
	return pgxBackend{p: p}, nil
}

type pgxBackend struct {
	p *pgxpool.Pool
}

func (b pgxBackend) Acquire(ctx context.Context) (Conn, error) {
	c, err := b.p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b pgxBackend) Close() { b.p.Close() }

// Open returns a plain pgx pool after a ping. Used by the command-line tools,
// which run only when a database is configured.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
