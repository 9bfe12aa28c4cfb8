package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restoassist/internal/db"
	"restoassist/internal/db/dbtest"
)

func fakeConn(t *testing.T, h dbtest.Handler) db.Conn {
	t.Helper()
	c, err := (&dbtest.Backend{Handler: h}).Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c
}

func TestLoadHistory(t *testing.T) {
	convID := uuid.New()
	now := time.Now()
	var gotArgs []any

	c := fakeConn(t, dbtest.Handler{
		Query: func(_ context.Context, _ string, args []any) (pgx.Rows, error) {
			gotArgs = args
			return dbtest.NewRows(
				[]any{"user", "Czy macie pierogi?", 0, now},
				[]any{"assistant", "Tak, ruskie i z mięsem.", 9, now},
			), nil
		},
	})

	turns, err := LoadHistory(context.Background(), c, convID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, 9, turns[1].Tokens)
	assert.Equal(t, []any{convID, 10}, gotArgs)
}

func TestLoadHistoryZeroLimitSkipsQuery(t *testing.T) {
	c := fakeConn(t, dbtest.Handler{})
	turns, err := LoadHistory(context.Background(), c, uuid.New(), 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestLoadHistoryPropagatesErrors(t *testing.T) {
	c := fakeConn(t, dbtest.Handler{
		Query: func(context.Context, string, []any) (pgx.Rows, error) {
			return &dbtest.Rows{Fail: errors.New("relation \"conversation_messages\" does not exist")}, nil
		},
	})
	_, err := LoadHistory(context.Background(), c, uuid.New(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestAppendTurns(t *testing.T) {
	convID := uuid.New()
	var gotArgs []any
	c := fakeConn(t, dbtest.Handler{
		Exec: func(_ context.Context, _ string, args []any) (pgconn.CommandTag, error) {
			gotArgs = args
			return pgconn.NewCommandTag("INSERT 0 2"), nil
		},
	})

	err := AppendTurns(context.Background(), c, convID,
		Turn{Role: "user", Content: "hi"},
		Turn{Role: "assistant", Content: "hello", Tokens: 3},
	)
	require.NoError(t, err)
	require.Len(t, gotArgs, 4)
	assert.Equal(t, convID, gotArgs[0])
	assert.Equal(t, []string{"user", "assistant"}, gotArgs[1])
	assert.Equal(t, []string{"hi", "hello"}, gotArgs[2])
	assert.Equal(t, []int32{0, 3}, gotArgs[3])
}

func TestAppendTurnsNoTurnsIsNoop(t *testing.T) {
	c := fakeConn(t, dbtest.Handler{})
	assert.NoError(t, AppendTurns(context.Background(), c, uuid.New()))
}

func TestPruneConversations(t *testing.T) {
	var secs any
	c := fakeConn(t, dbtest.Handler{
		Exec: func(_ context.Context, _ string, args []any) (pgconn.CommandTag, error) {
			secs = args[0]
			return pgconn.NewCommandTag("DELETE 7"), nil
		},
	})

	n, err := PruneConversations(context.Background(), c, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, float64(172800), secs)
}

func TestListMenu(t *testing.T) {
	c := fakeConn(t, dbtest.Handler{
		Query: func(context.Context, string, []any) (pgx.Rows, error) {
			return dbtest.NewRows(
				[]any{int64(4), "Żurek", 18.5, "soup", "z jajkiem"},
				[]any{int64(5), "Pierogi ruskie", 24.0, nil, nil},
			), nil
		},
	})

	items, err := ListMenu(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Żurek", items[0].Name)
	require.NotNil(t, items[0].Category)
	assert.Equal(t, "soup", *items[0].Category)
	assert.Nil(t, items[1].Category)
	assert.Nil(t, items[1].Description)
}

func TestSampleMenu(t *testing.T) {
	items := SampleMenu()
	require.Len(t, items, 3)
	assert.Equal(t, "Pizza Margherita", items[0].Name)
}
