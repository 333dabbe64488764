// Package connector defines the contract agent-specific log-store readers
// implement: a cheap detect() probe and a fully-ingesting scan() that emits
// the canonical model.NormalizedConversation shape.
package connector

import (
	"context"
	"fmt"

	"github.com/Avyukth/coding-agent-session-search/internal/model"
)

// ScanContext carries the parameters a scan() call needs.
type ScanContext struct {
	// DataRoot is a hint for where the agent's data store lives (for Codex,
	// this is $CODEX_HOME).
	DataRoot string

	// SinceTS, if set, is an epoch-millisecond bound: messages strictly
	// older than this MUST be filtered out by the connector.
	SinceTS *int64
}

// DetectResult is the outcome of a cheap, side-effect-free probe for whether
// an agent's data store is present on this machine.
type DetectResult struct {
	// Detected is true iff the store was found.
	Detected bool
	// Evidence holds human-readable paths/facts supporting the verdict.
	Evidence []string
}

// Connector transforms one agent's on-disk log format into the canonical
// model. Implementations must never mutate the agent's on-disk store.
type Connector interface {
	// Slug is the stable identifier for this connector's agent, e.g. "codex".
	Slug() string

	// Detect reports whether this agent's data store is present. Must be
	// cheap and side-effect-free.
	Detect() DetectResult

	// DefaultDataRoot returns the data root Scan should use when the caller
	// has no explicit override (e.g. no YAML config entry for this agent),
	// typically derived from the same environment variable Detect() probes.
	// Returns "" if no default can be determined.
	DefaultDataRoot() string

	// Scan fully ingests the agent's store given sc, returning normalized
	// conversations. Individual malformed records are skipped, never causing
	// Scan to fail; only a fully unreadable store does.
	Scan(ctx context.Context, sc ScanContext) ([]model.NormalizedConversation, error)
}

// Kind classifies a ConnectorError.
type Kind int

const (
	// KindIO indicates the agent's data store was unreadable.
	KindIO Kind = iota
	// KindParse indicates a fatal, whole-file format violation (not a
	// per-record parse failure, which is skipped rather than surfaced).
	KindParse
	// KindConfiguration indicates a required environment variable was
	// missing or pointed at something that isn't a directory.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the error type returned by connector operations.
type Error struct {
	kind Kind
	op   string
	err  error
}

// NewError constructs a connector Error of the given kind for op, wrapping
// cause.
func NewError(kind Kind, op string, cause error) *Error {
	return &Error{kind: kind, op: op, err: cause}
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("connector: %s: %s", e.op, e.kind)
	}
	return fmt.Sprintf("connector: %s: %s: %v", e.op, e.kind, e.err)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }
