package db

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restoassist/internal/resource"
)

var errLeaseReleased = errors.New("lease already released")

// Lease is one connection checked out of a Pool. It must be released exactly
// once; use after release fails with resource.ErrProgrammingError.
type Lease struct {
	pool     *Pool
	conn     Conn
	released atomic.Bool
}

// Release returns the connection to the pool. A second call is a programming
// error: it returns resource.ErrProgrammingError, or panics for pools created
// with StrictLeases.
func (l *Lease) Release() error {
	if !l.released.CompareAndSwap(false, true) {
		err := resource.E("db.release", resource.KindProgrammingError, errLeaseReleased)
		l.pool.log.Error().Err(err).Msg("db: double release")
		if l.pool.strict {
			panic(err)
		}
		return err
	}
	l.pool.release(l.conn)
	return nil
}

func (l *Lease) Released() bool { return l.released.Load() }

func (l *Lease) useErr(op string) error {
	if l.released.Load() {
		return resource.E(op, resource.KindProgrammingError, errLeaseReleased)
	}
	return nil
}

func (l *Lease) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := l.useErr("db.exec"); err != nil {
		return pgconn.CommandTag{}, err
	}
	return l.conn.Exec(ctx, sql, args...)
}

func (l *Lease) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := l.useErr("db.query"); err != nil {
		return nil, err
	}
	return l.conn.Query(ctx, sql, args...)
}

func (l *Lease) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := l.useErr("db.query_row"); err != nil {
		return errRow{err: err}
	}
	return l.conn.QueryRow(ctx, sql, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
