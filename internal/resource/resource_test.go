package resource

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsSentinelThroughWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("acquire: %w", E("db.acquire", KindResourceExhausted, cause))

	assert.True(t, errors.Is(err, ErrExhausted))
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindResourceExhausted, KindOf(err))
	assert.Equal(t, "acquire: db.acquire: resource_exhausted: dial tcp: connection refused", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestForState(t *testing.T) {
	assert.NoError(t, ForState("op", StateReady, nil))
	assert.True(t, errors.Is(ForState("op", StateUnconfigured, nil), ErrUnconfigured))
	assert.True(t, errors.Is(ForState("op", StateUnavailable, nil), ErrUnavailable))
	assert.True(t, errors.Is(ForState("op", StateInitializing, nil), ErrUnavailable))
}

func TestStateText(t *testing.T) {
	b, err := StateReady.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "ready", string(b))
	assert.Equal(t, "unconfigured", StateUnconfigured.String())
	assert.Equal(t, "state(42)", State(42).String())
}
