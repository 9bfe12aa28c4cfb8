// Package db manages the process-wide Postgres connection pool: creation with
// bounded retries, a capacity-capped lease API, and liveness reporting.
package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"restoassist/internal/metrics"
	"restoassist/internal/resource"
)

const (
	defaultMaxConns       = 10
	defaultAcquireTimeout = 2 * time.Second
	defaultAttemptTimeout = 5 * time.Second

	// Caps keep BaseDelay << MaxRetries well inside time.Duration.
	maxRetriesCap = 16
	maxBaseDelay  = time.Hour
)

// Options configures CreatePool. Zero values get defaults; an empty DSN means
// the database is not configured.
type Options struct {
	DSN      string
	MinConns int
	MaxConns int

	// MaxRetries is the number of retries after the first failed attempt.
	// Retry n (0-based) waits BaseDelay * 2^n.
	MaxRetries int
	BaseDelay  time.Duration

	// AttemptTimeout bounds one connect + liveness probe.
	AttemptTimeout time.Duration
	// AcquireTimeout bounds how long Acquire waits for a free slot.
	AcquireTimeout time.Duration

	// StrictLeases panics on double release instead of returning an error.
	StrictLeases bool

	Connector Connector
	Sleep     func(ctx context.Context, d time.Duration) error
	Logger    zerolog.Logger
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	State      resource.State `json:"state"`
	MinConns   int            `json:"min_conns"`
	MaxConns   int            `json:"max_conns"`
	CheckedOut int64          `json:"checked_out"`
}

// Pool is the process's single database pool. Safe for concurrent use.
type Pool struct {
	state    resource.State
	cause    error
	min, max int

	backend        Backend
	slots          *semaphore.Weighted
	acquireTimeout time.Duration
	strict         bool
	checkedOut     atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool

	log zerolog.Logger
}

// CreatePool builds the pool. It always returns a non-nil *Pool whose State
// reports the outcome; the error is non-nil unless the pool is Ready:
//   - empty DSN: StateUnconfigured, resource.ErrUnconfigured, nothing dialed
//   - every attempt failed: StateUnavailable, resource.ErrUnavailable wrapping
//     the last cause
func CreatePool(ctx context.Context, opts Options) (*Pool, error) {
	opts = withDefaults(opts)
	p := &Pool{
		state:          resource.StateUnconfigured,
		min:            opts.MinConns,
		max:            opts.MaxConns,
		slots:          semaphore.NewWeighted(int64(opts.MaxConns)),
		acquireTimeout: opts.AcquireTimeout,
		strict:         opts.StrictLeases,
		log:            opts.Logger,
	}

	if opts.DSN == "" {
		p.log.Info().Msg("db: no database url configured, persistence disabled")
		metrics.DependencyState("database", p.state)
		return p, resource.E("db.create_pool", resource.KindUnconfigured, nil)
	}

	p.state = resource.StateInitializing
	metrics.DependencyState("database", p.state)

	cc := ConnectConfig{
		DSN:      opts.DSN,
		MinConns: int32(opts.MinConns),
		MaxConns: int32(opts.MaxConns),
	}
	maxAttempts := opts.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := opts.BaseDelay << (attempt - 1)
			p.log.Info().
				Int("attempt", attempt+1).
				Int("max_attempts", maxAttempts).
				Dur("delay", delay).
				Msg("db: retrying pool creation")
			if err := opts.Sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		backend, err := connectAndProbe(ctx, opts, cc)
		metrics.PoolConnectAttempt(err == nil)
		if err == nil {
			p.backend = backend
			p.state = resource.StateReady
			metrics.DependencyState("database", p.state)
			p.log.Info().
				Int("attempt", attempt+1).
				Int("min_conns", p.min).
				Int("max_conns", p.max).
				Str("outcome", "ready").
				Msg("db: pool ready")
			return p, nil
		}

		lastErr = err
		p.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Str("outcome", "failed").
			Msg("db: pool creation attempt failed")
	}

	p.state = resource.StateUnavailable
	p.cause = lastErr
	metrics.DependencyState("database", p.state)
	p.log.Warn().Err(lastErr).Int("attempts", maxAttempts).Msg("db: pool unavailable, continuing in degraded mode")
	return p, resource.E("db.create_pool", resource.KindUnavailable, lastErr)
}

func withDefaults(opts Options) Options {
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.MinConns < 0 {
		opts.MinConns = 0
	}
	if opts.MinConns > opts.MaxConns {
		opts.MinConns = opts.MaxConns
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > maxRetriesCap {
		opts.MaxRetries = maxRetriesCap
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.BaseDelay > maxBaseDelay {
		opts.BaseDelay = maxBaseDelay
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaultAcquireTimeout
	}
	if opts.Connector == nil {
		opts.Connector = PgxConnector
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return opts
}

// connectAndProbe is one creation attempt: build the backend, then lease one
// connection and ping it before declaring the pool usable. The backend outlives
// the attempt, so only the liveness check runs under AttemptTimeout.
func connectAndProbe(ctx context.Context, opts Options, cc ConnectConfig) (Backend, error) {
	backend, err := opts.Connector(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
	defer cancel()

	conn, err := backend.Acquire(actx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("liveness probe: acquire: %w", err)
	}
	err = conn.Ping(actx)
	conn.Release()
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("liveness probe: ping: %w", err)
	}
	return backend, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire checks out one connection. It fails with:
//   - resource.ErrUnconfigured / ErrUnavailable when the pool is not Ready
//   - resource.ErrExhausted when no slot frees up within the acquire timeout
//   - ctx.Err() when the caller's context ends first
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p.state != resource.StateReady {
		metrics.PoolAcquire(metrics.OutcomeUnavailable)
		return nil, resource.ForState("db.acquire", p.state, p.cause)
	}
	if p.closed.Load() {
		metrics.PoolAcquire(metrics.OutcomeUnavailable)
		return nil, resource.E("db.acquire", resource.KindUnavailable, errors.New("pool closed"))
	}

	wctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	err := p.slots.Acquire(wctx, 1)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.PoolAcquire(metrics.OutcomeCanceled)
			return nil, ctxErr
		}
		metrics.PoolAcquire(metrics.OutcomeExhausted)
		p.log.Warn().
			Int("max_conns", p.max).
			Dur("waited", p.acquireTimeout).
			Msg("db: pool exhausted")
		return nil, resource.E("db.acquire", resource.KindResourceExhausted,
			fmt.Errorf("all %d connections in use", p.max))
	}

	conn, err := p.backend.Acquire(ctx)
	if err != nil {
		p.slots.Release(1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.PoolAcquire(metrics.OutcomeCanceled)
			return nil, ctxErr
		}
		metrics.PoolAcquire(metrics.OutcomeFailed)
		return nil, resource.E("db.acquire", resource.KindUnavailable, err)
	}

	p.checkedOut.Add(1)
	metrics.PoolAcquire(metrics.OutcomeOK)
	return &Lease{pool: p, conn: conn}, nil
}

func (p *Pool) State() resource.State { return p.state }

// Cause is the last creation error for an Unavailable pool.
func (p *Pool) Cause() error { return p.cause }

func (p *Pool) Stats() Stats {
	return Stats{
		State:      p.state,
		MinConns:   p.min,
		MaxConns:   p.max,
		CheckedOut: p.checkedOut.Load(),
	}
}

// Close shuts the backend down. Safe to call more than once and on pools that
// never became Ready.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.backend != nil {
			p.backend.Close()
		}
	})
}

func (p *Pool) release(conn Conn) {
	conn.Release()
	p.checkedOut.Add(-1)
	p.slots.Release(1)
	metrics.PoolRelease()
}
