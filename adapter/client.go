package adapter

import "context"

// Document is the store's native record shape: field names mapped to scalar
// strings or nested string-keyed maps. Documents carry no type information;
// typing is recovered through the schema supplied by the caller.
type Document = map[string]any

// CausalContext is the opaque token returned by a fetch and required by a
// subsequent update of the same record. The empty string means absent.
type CausalContext string

// Client is one connection to the store. Implementations are used by
// exactly one caller at a time; the pool provides that exclusivity.
type Client interface {
	// Fetch returns a record's causal context and document, or ErrNotFound.
	Fetch(ctx context.Context, bucketType, bucket, id string) (CausalContext, Document, error)

	// Update writes a document under id. An empty causal context means a
	// blind put (used for inserts).
	Update(ctx context.Context, bucketType, bucket, id string, cc CausalContext, doc Document) error

	// Delete removes the record under id.
	Delete(ctx context.Context, bucketType, bucket, id string) error

	// Search returns the documents in bucket whose field matches value,
	// via the named secondary index.
	Search(ctx context.Context, index, bucket, field, value string) ([]Document, error)

	// RunCommand executes a raw store command and returns its output.
	RunCommand(ctx context.Context, command string) (string, error)

	// Close tears the connection down.
	Close() error
}
