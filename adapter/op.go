package adapter

import (
	"fmt"
	"sort"

	"github.com/jacentio/rivet/codec"
)

// Op is a normalized operation: validated once, immutable, and passed to
// the store client unchanged.
type Op interface{ isOp() }

// ReadOp is a secondary-index search.
type ReadOp struct {
	Index  string
	Bucket string
	Field  string
	Value  string
}

// InsertOp writes a new record.
type InsertOp struct {
	BucketType string
	Bucket     string
	ID         string
	Fields     Document
}

// UpdateOp rewrites an existing record under its causal context.
type UpdateOp struct {
	BucketType string
	Bucket     string
	ID         string
	Context    CausalContext
	Fields     Document
}

// DeleteOp removes a record by id.
type DeleteOp struct {
	BucketType string
	Bucket     string
	ID         string
}

func (ReadOp) isOp()   {}
func (InsertOp) isOp() {}
func (UpdateOp) isOp() {}
func (DeleteOp) isOp() {}

// Filter selects records for update/delete. Only the single-entry
// primary-key form {key: value} is accepted.
type Filter map[string]any

func buildInsert(schema *codec.Schema, bucketType, bucket string, fields map[string]any) (*InsertOp, error) {
	dumped, err := codec.DumpRecord(schema, fields)
	if err != nil {
		return nil, err
	}
	id, ok := dumped[schema.Key].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("rivet: insert %s: missing primary key %q", schema.Name, schema.Key)
	}
	return &InsertOp{
		BucketType: bucketType,
		Bucket:     bucket,
		ID:         id,
		Fields:     dumped,
	}, nil
}

func buildUpdate(schema *codec.Schema, bucketType, bucket string, filter Filter, fields map[string]any, cc CausalContext, returning []string) (*UpdateOp, error) {
	if cc == "" {
		return nil, unsupported(ErrNoCausalContext, "update", schema.Name,
			"missing causal context, fetch the record before updating it")
	}
	if len(returning) > 0 {
		return nil, unsupported(ErrReturning, "update", schema.Name,
			fmt.Sprintf("cannot return fields %v after a write", returning))
	}
	id, err := filterID("update", schema, filter)
	if err != nil {
		return nil, err
	}
	dumped, err := codec.DumpRecord(schema, fields)
	if err != nil {
		return nil, err
	}
	return &UpdateOp{
		BucketType: bucketType,
		Bucket:     bucket,
		ID:         id,
		Context:    cc,
		Fields:     dumped,
	}, nil
}

func buildDelete(schema *codec.Schema, bucketType, bucket string, filter Filter) (*DeleteOp, error) {
	id, err := filterID("delete", schema, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteOp{
		BucketType: bucketType,
		Bucket:     bucket,
		ID:         id,
	}, nil
}

// filterID validates the single-field primary-key filter and renders the
// key value in its store form.
func filterID(op string, schema *codec.Schema, filter Filter) (string, error) {
	if len(filter) != 1 {
		return "", unsupported(ErrFilter, op, schema.Name,
			fmt.Sprintf("filter on %v, only {%s: value} is supported", filterFields(filter), schema.Key))
	}
	raw, ok := filter[schema.Key]
	if !ok {
		return "", unsupported(ErrFilter, op, schema.Name,
			fmt.Sprintf("filter on %v, only {%s: value} is supported", filterFields(filter), schema.Key))
	}
	dumped, err := codec.Dump(schema.Fields[schema.Key], raw)
	if err != nil {
		return "", err
	}
	if id, ok := dumped.(string); ok {
		return id, nil
	}
	return fmt.Sprint(dumped), nil
}

func filterFields(filter Filter) []string {
	fields := make([]string, 0, len(filter))
	for name := range filter {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}
