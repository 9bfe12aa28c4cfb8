// Package gateway is the single entry point request handlers use to reach the
// database pool and the AI client. It turns absent or failing dependencies into
// typed results instead of request failures.
package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"restoassist/internal/ai"
	"restoassist/internal/db"
	"restoassist/internal/resource"
)

// ConnPool is the part of *db.Pool the gateway needs.
type ConnPool interface {
	Acquire(ctx context.Context) (*db.Lease, error)
	Stats() db.Stats
}

// ChatClient is the part of *ai.Client the gateway needs.
type ChatClient interface {
	Invoke(ctx context.Context, messages []ai.Message, opts ai.InvokeOptions) (ai.Reply, error)
	State() resource.State
	Model() string
}

type Deps struct {
	Pool   ConnPool
	Client ChatClient
	Logger zerolog.Logger

	// Chat bounds applied to every Chat call.
	HistoryTurns    int
	MaxMessageChars int
}

type Gateway struct {
	pool   ConnPool
	client ChatClient
	log    zerolog.Logger

	historyTurns    int
	maxMessageChars int
}

func New(d Deps) *Gateway {
	return &Gateway{
		pool:            d.Pool,
		client:          d.Client,
		log:             d.Logger,
		historyTurns:    d.HistoryTurns,
		maxMessageChars: d.MaxMessageChars,
	}
}

// WithConnection leases a connection, runs fn with it and releases it on every
// exit path, including a panic in fn (the panic is re-raised after release).
// fn's error is returned unchanged; acquisition failures carry their
// resource.Kind so callers can tell exhaustion from data errors.
func (g *Gateway) WithConnection(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) (err error) {
	lease, err := g.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lease.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(ctx, lease)
}

// DatabaseReady reports whether the pool finished initialization successfully.
func (g *Gateway) DatabaseReady() bool {
	return g.pool.Stats().State == resource.StateReady
}

func (g *Gateway) AIReady() bool {
	return g.client.State() == resource.StateReady
}

type DependencyHealth struct {
	State      resource.State `json:"state"`
	Model      string         `json:"model,omitempty"`
	MinConns   int            `json:"min_conns,omitempty"`
	MaxConns   int            `json:"max_conns,omitempty"`
	CheckedOut *int64         `json:"checked_out,omitempty"`
}

type Health struct {
	Database DependencyHealth `json:"database"`
	AI       DependencyHealth `json:"ai"`
}

// Degraded reports whether any dependency is not Ready.
func (h Health) Degraded() bool {
	return h.Database.State != resource.StateReady || h.AI.State != resource.StateReady
}

func (g *Gateway) Health() Health {
	st := g.pool.Stats()
	dbh := DependencyHealth{State: st.State}
	if st.State == resource.StateReady {
		checkedOut := st.CheckedOut
		dbh.MinConns = st.MinConns
		dbh.MaxConns = st.MaxConns
		dbh.CheckedOut = &checkedOut
	}
	aih := DependencyHealth{State: g.client.State()}
	if aih.State == resource.StateReady {
		aih.Model = g.client.Model()
	}
	return Health{Database: dbh, AI: aih}
}
