package search

import "fmt"

// Kind classifies a search Error.
type Kind int

const (
	// KindIO indicates the underlying database connection or filesystem
	// failed (open, read, or write error unrelated to query semantics).
	KindIO Kind = iota
	// KindQuery indicates the query itself was malformed, either as typed
	// by the caller or after compilation to a FTS5 MATCH expression.
	KindQuery
	// KindBackend indicates the FTS5/SQLite backend rejected or failed to
	// execute an otherwise well-formed query (e.g. a driver-level error
	// surfaced mid-scan).
	KindBackend
	// KindRateLimited indicates the caller exceeded its request budget.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindQuery:
		return "query"
	case KindBackend:
		return "backend"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is the error type returned by search operations.
type Error struct {
	kind Kind
	op   string
	err  error
}

// NewError constructs a search Error of the given kind for op, wrapping
// cause.
func NewError(kind Kind, op string, cause error) *Error {
	return &Error{kind: kind, op: op, err: cause}
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("search: %s: %s", e.op, e.kind)
	}
	return fmt.Sprintf("search: %s: %s: %v", e.op, e.kind, e.err)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }
