// Package resource holds the lifecycle states and failure kinds shared by the
// external dependencies (database pool, AI client) and the gateway in front of them.
package resource

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of one external dependency.
//
// Unconfigured -> Initializing -> {Ready | Unavailable}. Ready and Unavailable
// are terminal for the lifetime of the process.
type State int32

const (
	StateUnconfigured State = iota
	StateInitializing
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind classifies a failure crossing a component boundary.
type Kind string

const (
	KindUnconfigured      Kind = "unconfigured"
	KindUnavailable       Kind = "unavailable"
	KindResourceExhausted Kind = "resource_exhausted"
	KindUpstreamFailure   Kind = "upstream_failure"
	KindMalformedReply    Kind = "malformed_reply"
	KindProgrammingError  Kind = "programming_error"
)

// Error is a typed failure. Op names the operation that failed; Err is the
// underlying cause and may be nil.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the bare sentinel for e's kind, so that
// errors.Is(err, resource.ErrExhausted) works through any wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnconfigured     = &Error{Kind: KindUnconfigured}
	ErrUnavailable      = &Error{Kind: KindUnavailable}
	ErrExhausted        = &Error{Kind: KindResourceExhausted}
	ErrUpstream         = &Error{Kind: KindUpstreamFailure}
	ErrMalformedReply   = &Error{Kind: KindMalformedReply}
	ErrProgrammingError = &Error{Kind: KindProgrammingError}
)

func E(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// carries none.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// ForState builds the error a disabled dependency returns from op.
// It returns nil for StateReady.
func ForState(op string, s State, cause error) error {
	switch s {
	case StateReady:
		return nil
	case StateUnconfigured:
		return E(op, KindUnconfigured, cause)
	default:
		return E(op, KindUnavailable, cause)
	}
}
