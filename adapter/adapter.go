package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacentio/rivet/codec"
	"github.com/jacentio/rivet/internal/b62"
	"github.com/jacentio/rivet/pool"
)

// Adapter executes operations against the store through a shared connection
// pool. One Adapter per repository configuration; safe for concurrent use.
type Adapter struct {
	pool *pool.Pool[Client]
	cfg  Config
	log  *slog.Logger
}

// New creates an Adapter on top of a connection pool.
func New(p *pool.Pool[Client], cfg Config, logger *slog.Logger) *Adapter {
	cfg.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		pool: p,
		cfg:  cfg,
		log:  logger,
	}
}

// Pool returns the adapter's connection pool.
func (a *Adapter) Pool() *pool.Pool[Client] {
	return a.pool
}

// Record is one decoded record plus the causal context it was read with.
type Record struct {
	Fields  map[string]any
	Context CausalContext
}

// Get fetches a record by id and decodes it per the schema. The returned
// record carries the causal context required to update it.
func (a *Adapter) Get(ctx context.Context, schema *codec.Schema, bucket, id string) (*Record, error) {
	type fetched struct {
		cc   CausalContext
		doc  Document
		exec time.Duration
	}

	wait, res, err := pool.Run(ctx, a.pool, func(c Client) (fetched, error) {
		start := time.Now()
		cc, doc, err := c.Fetch(ctx, a.cfg.BucketType, bucket, id)
		return fetched{cc: cc, doc: doc, exec: time.Since(start)}, err
	})
	a.LogCall(ctx, "fetch", wait, res.exec, err,
		"bucket_type", a.cfg.BucketType, "bucket", bucket, "id", id)
	if err != nil {
		return nil, err
	}

	fields, err := codec.LoadRecord(schema, res.doc)
	if err != nil {
		return nil, err
	}
	return &Record{Fields: fields, Context: res.cc}, nil
}

// Search queries a secondary index for records whose field matches value
// and decodes them per the schema. It returns the row count alongside the
// rows. Search results carry no causal context.
func (a *Adapter) Search(ctx context.Context, schema *codec.Schema, index, bucket, field string, value any) (int, []*Record, error) {
	dumped, err := codec.Dump(schema.Fields[field], value)
	if err != nil {
		return 0, nil, err
	}
	op := ReadOp{Index: index, Bucket: bucket, Field: field, Value: toString(dumped)}

	type searched struct {
		docs []Document
		exec time.Duration
	}
	wait, res, err := pool.Run(ctx, a.pool, func(c Client) (searched, error) {
		start := time.Now()
		docs, err := c.Search(ctx, op.Index, op.Bucket, op.Field, op.Value)
		return searched{docs: docs, exec: time.Since(start)}, err
	})
	a.LogCall(ctx, "search", wait, res.exec, err,
		"index", op.Index, "bucket", op.Bucket, op.Field, op.Value)
	if err != nil {
		return 0, nil, err
	}

	records := make([]*Record, 0, len(res.docs))
	for _, doc := range res.docs {
		fields, err := codec.LoadRecord(schema, doc)
		if err != nil {
			return 0, nil, err
		}
		records = append(records, &Record{Fields: fields})
	}
	return len(records), records, nil
}

// Insert writes a new record. The dumped fields must contain the schema's
// primary key.
func (a *Adapter) Insert(ctx context.Context, schema *codec.Schema, bucket string, fields map[string]any) error {
	op, err := buildInsert(schema, a.cfg.BucketType, bucket, fields)
	if err != nil {
		return err
	}

	wait, exec, err := a.write(ctx, func(c Client) error {
		return c.Update(ctx, op.BucketType, op.Bucket, op.ID, "", op.Fields)
	})
	a.LogCall(ctx, "insert", wait, exec, err,
		"bucket_type", op.BucketType, "bucket", op.Bucket, "id", op.ID)
	return err
}

// InsertAll is not supported by this store and always fails.
func (a *Adapter) InsertAll(ctx context.Context, schema *codec.Schema, bucket string, rows []map[string]any) error {
	return unsupported(nil, "insert_all", schema.Name, "bulk insert is not supported by this store")
}

// Update rewrites a record addressed by its primary key. cc must be the
// causal context returned by a prior Get; returning must be empty.
func (a *Adapter) Update(ctx context.Context, schema *codec.Schema, bucket string, filter Filter, fields map[string]any, cc CausalContext, returning ...string) error {
	op, err := buildUpdate(schema, a.cfg.BucketType, bucket, filter, fields, cc, returning)
	if err != nil {
		return err
	}

	wait, exec, err := a.write(ctx, func(c Client) error {
		return c.Update(ctx, op.BucketType, op.Bucket, op.ID, op.Context, op.Fields)
	})
	a.LogCall(ctx, "update", wait, exec, err,
		"bucket_type", op.BucketType, "bucket", op.Bucket, "id", op.ID)
	return err
}

// Delete removes a record addressed by its primary key.
func (a *Adapter) Delete(ctx context.Context, schema *codec.Schema, bucket string, filter Filter) error {
	op, err := buildDelete(schema, a.cfg.BucketType, bucket, filter)
	if err != nil {
		return err
	}

	wait, exec, err := a.write(ctx, func(c Client) error {
		return c.Delete(ctx, op.BucketType, op.Bucket, op.ID)
	})
	a.LogCall(ctx, "delete", wait, exec, err,
		"bucket_type", op.BucketType, "bucket", op.Bucket, "id", op.ID)
	return err
}

// RunCommand executes a raw store command on a pooled connection.
func (a *Adapter) RunCommand(ctx context.Context, command string) (string, error) {
	type ran struct {
		out  string
		exec time.Duration
	}
	wait, res, err := pool.Run(ctx, a.pool, func(c Client) (ran, error) {
		start := time.Now()
		out, err := c.RunCommand(ctx, command)
		return ran{out: out, exec: time.Since(start)}, err
	})
	a.LogCall(ctx, "run_command", wait, res.exec, err, "command", command)
	return res.out, err
}

// IDKind selects the kind of identifier to auto-generate.
type IDKind int

const (
	IDBinary IDKind = iota
	IDEmbed
	IDSerial
)

func (k IDKind) String() string {
	switch k {
	case IDBinary:
		return "binary"
	case IDEmbed:
		return "embed"
	case IDSerial:
		return "serial"
	}
	return fmt.Sprintf("id_kind(%d)", int(k))
}

// GenerateID returns a fresh unique identifier. Only binary and embed kinds
// are supported; the store has no notion of auto-incrementing integers.
func (a *Adapter) GenerateID(kind IDKind) (string, error) {
	switch kind {
	case IDBinary, IDEmbed:
		return b62.New(), nil
	default:
		return "", unsupported(ErrIDKind, "generate_id", "",
			fmt.Sprintf("%s identifiers are not supported, use binary ids", kind))
	}
}

// write runs one store mutation on a pooled connection and measures its
// execution time.
func (a *Adapter) write(ctx context.Context, fn func(Client) error) (wait, exec time.Duration, err error) {
	wait, exec, err = pool.Run(ctx, a.pool, func(c Client) (time.Duration, error) {
		start := time.Now()
		err := fn(c)
		return time.Since(start), err
	})
	return wait, exec, err
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
