// Package codec converts typed record field values to and from the store's
// schemaless document representation.
//
// The store speaks strings and string-keyed maps only; all typing lives in
// the schema. Each field type maps to an ordered chain of load steps
// (store value to typed value) and dump steps (typed value to store value),
// looked up in a dispatch table built at package init. Unknown field types
// get an identity chain in both directions.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Kind tags a field type and selects its codec chains.
type Kind int

const (
	// Opaque is the zero Kind: values pass through unchanged.
	Opaque Kind = iota
	Date
	DateTime
	Float
	Integer
	BinaryID
	List
	Embed
)

func (k Kind) String() string {
	switch k {
	case Opaque:
		return "opaque"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Float:
		return "float"
	case Integer:
		return "integer"
	case BinaryID:
		return "binary_id"
	case List:
		return "list"
	case Embed:
		return "embed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Type is a field type descriptor. Elem is set for List, Rec for Embed.
type Type struct {
	Kind Kind
	Elem *Type
	Rec  *Schema
}

// Scalar returns the descriptor for a scalar kind.
func Scalar(k Kind) Type {
	return Type{Kind: k}
}

// ListOf returns the descriptor for an ordered collection of elem.
func ListOf(elem Type) Type {
	return Type{Kind: List, Elem: &elem}
}

// EmbedOf returns the descriptor for a collection of embedded sub-records.
// Embedded collections are keyed by each sub-record's primary key and load
// in no particular order.
func EmbedOf(rec *Schema) Type {
	return Type{Kind: Embed, Rec: rec}
}

// Schema is the slice of the schema system this layer needs: the record
// name, its primary-key field, and the type of each field. Fields absent
// from the map are treated as Opaque.
type Schema struct {
	Name   string
	Key    string
	Fields map[string]Type
}

// ErrCast matches any decode failure via errors.Is. Decode failures are
// recoverable type mismatches, not programming errors; the schema layer
// turns them into validation errors.
var ErrCast = errors.New("rivet: cast failed")

// CastError reports a value that could not be converted for a field type.
type CastError struct {
	Kind  Kind
	Value any
	cause error
}

func (e *CastError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("rivet: cast %#v as %s: %v", e.Value, e.Kind, e.cause)
	}
	return fmt.Sprintf("rivet: cast %#v as %s failed", e.Value, e.Kind)
}

func (e *CastError) Is(target error) bool { return target == ErrCast }

func (e *CastError) Unwrap() error { return e.cause }

func castErr(k Kind, v any, cause error) error {
	return &CastError{Kind: k, Value: v, cause: cause}
}

// LoadFunc is one step of a loader chain (store value to typed value).
type LoadFunc func(any) (any, error)

// DumpFunc is one step of a dumper chain (typed value to store value).
type DumpFunc func(any) (any, error)

const (
	dateLayout = "2006-01-02"
	// Datetimes carry a literal Z marker regardless of the value's offset;
	// the store has no timezone notion and everything is taken as UTC.
	datetimeLayout = "2006-01-02T15:04:05"
)

// Dispatch tables, built once at init. List and Embed chains are produced
// on demand because they close over the element type.
var (
	scalarLoaders map[Kind][]LoadFunc
	scalarDumpers map[Kind][]DumpFunc
	identityLoad  = []LoadFunc{func(v any) (any, error) { return v, nil }}
	identityDump  = []DumpFunc{func(v any) (any, error) { return v, nil }}
)

func init() {
	scalarLoaders = map[Kind][]LoadFunc{
		Date:     {nilSafe(loadDate)},
		DateTime: {nilSafe(loadDateTime)},
		Float:    {nilSafe(loadFloat)},
		Integer:  {nilSafe(loadInteger)},
		BinaryID: identityLoad,
	}
	scalarDumpers = map[Kind][]DumpFunc{
		Date:     {nilSafe(dumpDate)},
		DateTime: {nilSafe(dumpDateTime)},
		Float:    {nilSafe(dumpScalar)},
		Integer:  {nilSafe(dumpScalar)},
		BinaryID: {nilSafe(dumpScalar)},
	}
}

// nilSafe wraps a chain step so nil passes through without invoking it.
func nilSafe(f func(any) (any, error)) func(any) (any, error) {
	return func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return f(v)
	}
}

// Loaders returns the loader chain for a field type, applied left to right.
func Loaders(t Type) []LoadFunc {
	switch t.Kind {
	case List:
		return []LoadFunc{nilSafe(loadList(t.elem()))}
	case Embed:
		return []LoadFunc{nilSafe(loadEmbed(t.Rec))}
	default:
		if chain, ok := scalarLoaders[t.Kind]; ok {
			return chain
		}
		return identityLoad
	}
}

// Dumpers returns the dumper chain for a field type, applied left to right.
func Dumpers(t Type) []DumpFunc {
	switch t.Kind {
	case List:
		return []DumpFunc{nilSafe(dumpList(t.elem()))}
	case Embed:
		return []DumpFunc{nilSafe(dumpEmbed(t.Rec))}
	default:
		if chain, ok := scalarDumpers[t.Kind]; ok {
			return chain
		}
		return identityDump
	}
}

// Load runs v through the loader chain for t.
func Load(t Type, v any) (any, error) {
	for _, f := range Loaders(t) {
		var err error
		if v, err = f(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Dump runs v through the dumper chain for t.
func Dump(t Type, v any) (any, error) {
	for _, f := range Dumpers(t) {
		var err error
		if v, err = f(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (t Type) elem() Type {
	if t.Elem == nil {
		return Type{}
	}
	return *t.Elem
}

func loadDate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		return nil, castErr(Date, v, nil)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, castErr(Date, v, err)
	}
	return t, nil
}

func loadDateTime(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		return nil, castErr(DateTime, v, nil)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, castErr(DateTime, v, err)
	}
	return t.UTC(), nil
}

func loadFloat(v any) (any, error) {
	switch v := v.(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, castErr(Float, v, err)
		}
		return f, nil
	case float64:
		return v, nil
	default:
		return nil, castErr(Float, v, nil)
	}
}

func loadInteger(v any) (any, error) {
	switch v := v.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, castErr(Integer, v, err)
		}
		return n, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return nil, castErr(Integer, v, nil)
	}
}

func dumpDate(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, castErr(Date, v, nil)
	}
	return t.Format(dateLayout), nil
}

func dumpDateTime(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, castErr(DateTime, v, nil)
	}
	return t.Format(datetimeLayout) + "Z", nil
}

// dumpScalar renders any scalar via its generic string representation.
func dumpScalar(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}
