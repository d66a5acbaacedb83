// Package store defines the vocabulary shared by all Store Handles: the
// connection [State] and the error taxonomy surfaced to tool callers.
//
// A Store Handle owns exactly one backend connection (or pool) for its whole
// Connected lifetime. Handles start Disconnected, become Connected after a
// successful Connect, and return to Disconnected on Disconnect. Every
// operation on a Disconnected handle fails with [ErrNotConnected].
//
// Backend failures are wrapped rather than rewritten so callers can recover
// the driver error with [errors.As] and the diagnostic text survives
// verbatim in the error message.
package store

import (
	"errors"
	"fmt"
)

// State is the connection state of a Store Handle.
type State int

const (
	// Disconnected is the initial state and the state after Disconnect.
	Disconnected State = iota

	// Connected means the handle holds a verified connection or pool.
	Connected
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by any operation attempted on a handle that
// holds no connection.
var ErrNotConnected = errors.New("store: not connected")

// ConnectionError reports that a backend could not be reached or refused
// the handshake during Connect.
type ConnectionError struct {
	// Backend names the store ("postgres", "redis").
	Backend string

	// Addr is the host:port that was dialled.
	Addr string

	// Err is the underlying driver error.
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s store: connect to %s: %v", e.Backend, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports that the backend rejected or failed an operation on a
// Connected handle.
type QueryError struct {
	// Backend names the store ("postgres", "redis").
	Backend string

	// Op is the operation that failed (e.g. "query", "set").
	Op string

	// Err is the underlying driver error. Its message is preserved verbatim.
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
