// Package dbtest provides in-memory fakes for the db package's Connector,
// Backend and Conn so callers can exercise pool and lease behavior without
// a Postgres server.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restoassist/internal/db"
)

var ErrNotStubbed = errors.New("dbtest: query not stubbed")

// Handler answers queries issued on fake connections. Nil funcs fail with
// ErrNotStubbed; a nil Ping succeeds.
type Handler struct {
	Exec     func(ctx context.Context, sql string, args []any) (pgconn.CommandTag, error)
	Query    func(ctx context.Context, sql string, args []any) (pgx.Rows, error)
	QueryRow func(ctx context.Context, sql string, args []any) pgx.Row
	Ping     func(ctx context.Context) error
}

// Backend is a fake db.Backend that hands out fake connections and counts
// acquisitions and releases.
type Backend struct {
	Handler    Handler
	AcquireErr error

	acquired       atomic.Int64
	released       atomic.Int64
	doubleReleases atomic.Int64
	closed         atomic.Bool
}

func (b *Backend) Acquire(ctx context.Context) (db.Conn, error) {
	if b.AcquireErr != nil {
		return nil, b.AcquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.acquired.Add(1)
	return &Conn{b: b}, nil
}

func (b *Backend) Close() { b.closed.Store(true) }

func (b *Backend) Acquired() int64       { return b.acquired.Load() }
func (b *Backend) Released() int64       { return b.released.Load() }
func (b *Backend) DoubleReleases() int64 { return b.doubleReleases.Load() }
func (b *Backend) Closed() bool          { return b.closed.Load() }

// Outstanding is the number of fake connections acquired and not yet released.
func (b *Backend) Outstanding() int64 { return b.acquired.Load() - b.released.Load() }

// Conn is a fake db.Conn.
type Conn struct {
	b        *Backend
	released atomic.Bool
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.b.Handler.Exec == nil {
		return pgconn.CommandTag{}, ErrNotStubbed
	}
	return c.b.Handler.Exec(ctx, sql, args)
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.b.Handler.Query == nil {
		return nil, ErrNotStubbed
	}
	return c.b.Handler.Query(ctx, sql, args)
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if c.b.Handler.QueryRow == nil {
		return Row{Err: ErrNotStubbed}
	}
	return c.b.Handler.QueryRow(ctx, sql, args)
}

func (c *Conn) Ping(ctx context.Context) error {
	if c.b.Handler.Ping == nil {
		return nil
	}
	return c.b.Handler.Ping(ctx)
}

func (c *Conn) Release() {
	if !c.released.CompareAndSwap(false, true) {
		c.b.doubleReleases.Add(1)
		return
	}
	c.b.released.Add(1)
}

// Connector fails the first FailFirst calls with Err, then returns Backend.
// A nil Backend makes every call fail.
type Connector struct {
	Backend   *Backend
	FailFirst int
	Err       error

	mu      sync.Mutex
	calls   int
	configs []db.ConnectConfig
}

func (c *Connector) Connect(ctx context.Context, cfg db.ConnectConfig) (db.Backend, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.configs = append(c.configs, cfg)
	c.mu.Unlock()

	err := c.Err
	if err == nil {
		err = errors.New("dbtest: connection refused")
	}
	if c.Backend == nil || n <= c.FailFirst {
		return nil, err
	}
	return c.Backend, nil
}

func (c *Connector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Connector) Configs() []db.ConnectConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]db.ConnectConfig(nil), c.configs...)
}

// Row is a fake pgx.Row.
type Row struct {
	Values []any
	Err    error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(dest, r.Values)
}

// Rows is a fake pgx.Rows over fixed values.
type Rows struct {
	Data [][]any
	Fail error

	idx    int
	closed bool
}

func NewRows(data ...[]any) *Rows { return &Rows{Data: data, idx: -1} }

func (r *Rows) Close()                                       { r.closed = true }
func (r *Rows) Err() error                                   { return r.Fail }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

func (r *Rows) Next() bool {
	if r.closed || r.Fail != nil {
		return false
	}
	r.idx++
	if r.idx >= len(r.Data) {
		r.closed = true
		return false
	}
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.Data) {
		return errors.New("dbtest: scan outside a row")
	}
	return assign(dest, r.Data[r.idx])
}

func (r *Rows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.Data) {
		return nil, errors.New("dbtest: values outside a row")
	}
	return r.Data[r.idx], nil
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("dbtest: scan %d destinations from %d values", len(dest), len(values))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("dbtest: destination %d is not a pointer", i)
		}
		if values[i] == nil {
			dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		elem := dv.Elem()
		if elem.Kind() == reflect.Pointer && v.Type().AssignableTo(elem.Type().Elem()) {
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(v)
			elem.Set(p)
			continue
		}
		if !v.Type().AssignableTo(elem.Type()) {
			return fmt.Errorf("dbtest: cannot scan %T into %T", values[i], d)
		}
		dv.Elem().Set(v)
	}
	return nil
}
