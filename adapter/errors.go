package adapter

import "errors"

var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("rivet: record not found")

	// ErrUnsupported matches every UnsupportedError via errors.Is.
	ErrUnsupported = errors.New("rivet: unsupported operation")

	// ErrNoCausalContext is the class for updates attempted without the
	// causal context of a prior read.
	ErrNoCausalContext = errors.New("rivet: missing causal context, must read before update")

	// ErrFilter is the class for update/delete filters that go beyond the
	// primary-key field.
	ErrFilter = errors.New("rivet: only primary-key filters are supported")

	// ErrReturning is the class for read-after-write field projections.
	ErrReturning = errors.New("rivet: read-after-write is not supported")

	// ErrIDKind is the class for unsupported auto-generated identifier
	// kinds (integer/serial identifiers).
	ErrIDKind = errors.New("rivet: unsupported identifier kind")
)

// UnsupportedError reports misuse of the adapter: an operation or construct
// this store cannot express. It is raised immediately and never retried.
// It matches ErrUnsupported and its per-class sentinel via errors.Is.
type UnsupportedError struct {
	// Op is the operation tag ("insert_all", "update", "delete", ...).
	Op string

	// Schema is the record schema name, when known.
	Schema string

	// Detail names the offending construct or field.
	Detail string

	kind error
}

func (e *UnsupportedError) Error() string {
	msg := "rivet: " + e.Op
	if e.Schema != "" {
		msg += " " + e.Schema
	}
	return msg + ": " + e.Detail
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

func (e *UnsupportedError) Unwrap() error { return e.kind }

func unsupported(kind error, op, schema, detail string) error {
	return &UnsupportedError{Op: op, Schema: schema, Detail: detail, kind: kind}
}
