// Package adapter bridges schema-typed records to a schemaless key-value
// store.
//
// The store speaks documents: string-keyed maps whose values are strings or
// nested string-keyed maps (index-keyed for ordered collections, primary-
// key-keyed for embedded sub-records). The adapter validates each requested
// operation, builds an immutable normalized operation, borrows a connection
// from a bounded pool, executes the operation against the store client, and
// runs raw documents through the codec chains to recover typed values. Each
// executed call is logged with its queue time and execution time reported
// separately.
//
// # Operations
//
// Reads go through [Adapter.Get] (by id, returning the record's causal
// context) and [Adapter.Search] (by secondary index). Writes go through
// [Adapter.Insert], [Adapter.Update] and [Adapter.Delete].
//
// Updates require the causal context returned by a prior Get, and updates
// and deletes address records by primary key only. The deliberately
// unsupported operations fail fast with an [UnsupportedError]:
//
//   - bulk insert ([Adapter.InsertAll])
//   - update without a causal context
//   - update/delete with a filter beyond the primary key
//   - read-after-write field projections
//   - auto-generated integer identifiers
//
// # Errors
//
// Decode failures surface as [codec.ErrCast] and are recoverable type
// mismatches. [UnsupportedError] values indicate caller misuse and match
// [ErrUnsupported] plus a per-class sentinel via errors.Is. Store-level
// failures propagate unchanged; retry policy belongs to the store client.
package adapter
