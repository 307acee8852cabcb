// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package route

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/refsync/pkg/types"
)

// ErrWriteUnavailableOffline is returned when a write is requested while
// no internet connectivity is available. Writes are refused up front in
// that state rather than attempted against backends that cannot accept
// them.
var ErrWriteUnavailableOffline = errors.New("write unavailable: no internet connectivity")

// ErrAssignUnavailable is returned when no reachable backend exposes the
// immediate add-to-collection primitive. Callers fall back to embedding
// membership in the create payload.
var ErrAssignUnavailable = errors.New("collection assignment unavailable on reachable backends")

// TransportError wraps a failure from one backend during one operation,
// keeping the backend identity for fallback reporting.
type TransportError struct {
	Backend types.BackendKind
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Attempt records one failed backend try within an exhausted operation.
type Attempt struct {
	Backend types.BackendKind
	Err     error
}

// ExhaustedError is returned when every backend in an operation's
// ordering failed. It names each backend and its failure so the caller
// can report exactly what was tried.
type ExhaustedError struct {
	Op       string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("%s failed on all backends (%s)", e.Op, strings.Join(parts, "; "))
}

// Backends lists the backends attempted, in order.
func (e *ExhaustedError) Backends() []types.BackendKind {
	kinds := make([]types.BackendKind, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		kinds = append(kinds, a.Backend)
	}
	return kinds
}
