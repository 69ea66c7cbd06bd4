package codec

import (
	"sort"
	"strconv"
)

// Ordered collections travel as maps from stringified index to element;
// embedded collections as maps from primary-key value to sub-document.
// Both shapes are the store's wire format and must be reproduced exactly.

// loadList decodes an index-keyed map into an ordered []any. Keys are
// parsed back to integers and sorted ascending; numerically duplicate
// indices (such as "1" and "01") are kept, not deduplicated, in a stable
// order.
func loadList(elem Type) LoadFunc {
	return func(v any) (any, error) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, castErr(List, v, nil)
		}

		type entry struct {
			idx int
			val any
		}
		entries := make([]entry, 0, len(m))
		for k, val := range m {
			idx, err := strconv.Atoi(k)
			if err != nil {
				return nil, castErr(List, v, err)
			}
			entries = append(entries, entry{idx: idx, val: val})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].idx < entries[j].idx
		})

		out := make([]any, 0, len(entries))
		for _, e := range entries {
			loaded, err := Load(elem, e.val)
			if err != nil {
				return nil, err
			}
			out = append(out, loaded)
		}
		return out, nil
	}
}

// dumpList encodes an ordered sequence into a map from stringified
// zero-based position to dumped element.
func dumpList(elem Type) DumpFunc {
	return func(v any) (any, error) {
		var vals []any
		switch v := v.(type) {
		case []any:
			vals = v
		case []string:
			vals = make([]any, len(v))
			for i, s := range v {
				vals[i] = s
			}
		default:
			return nil, castErr(List, v, nil)
		}

		out := make(map[string]any, len(vals))
		for i, val := range vals {
			dumped, err := Dump(elem, val)
			if err != nil {
				return nil, err
			}
			out[strconv.Itoa(i)] = dumped
		}
		return out, nil
	}
}

// loadEmbed decodes a primary-key-keyed map of sub-documents into a slice
// of decoded sub-records. The keys are discarded and the slice follows the
// map's enumeration order, which does not track original insertion order;
// callers must be order-insensitive for embedded collections.
func loadEmbed(rec *Schema) LoadFunc {
	return func(v any) (any, error) {
		if rec == nil {
			return nil, castErr(Embed, v, nil)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, castErr(Embed, v, nil)
		}

		out := make([]any, 0, len(m))
		for _, raw := range m {
			sub, ok := raw.(map[string]any)
			if !ok {
				return nil, castErr(Embed, raw, nil)
			}
			loaded, err := LoadRecord(rec, sub)
			if err != nil {
				return nil, err
			}
			out = append(out, loaded)
		}
		return out, nil
	}
}

// dumpEmbed re-keys a slice of sub-records into a map from each record's
// primary-key value to its dumped form. Distinct primary keys are a caller
// invariant; duplicates silently overwrite.
func dumpEmbed(rec *Schema) DumpFunc {
	return func(v any) (any, error) {
		if rec == nil {
			return nil, castErr(Embed, v, nil)
		}
		vals, ok := v.([]any)
		if !ok {
			return nil, castErr(Embed, v, nil)
		}

		out := make(map[string]any, len(vals))
		for _, val := range vals {
			sub, ok := val.(map[string]any)
			if !ok {
				return nil, castErr(Embed, val, nil)
			}
			dumped, err := DumpRecord(rec, sub)
			if err != nil {
				return nil, err
			}
			key, err := Dump(rec.Fields[rec.Key], sub[rec.Key])
			if err != nil {
				return nil, err
			}
			ks, ok := key.(string)
			if !ok {
				return nil, castErr(Embed, key, nil)
			}
			out[ks] = dumped
		}
		return out, nil
	}
}

// LoadRecord decodes every field of a raw document per the schema.
// Fields without a schema entry pass through unchanged. A decode failure
// is wrapped with the record and field name and still matches ErrCast.
func LoadRecord(rec *Schema, doc map[string]any) (map[string]any, error) {
	if rec == nil {
		rec = &Schema{}
	}
	out := make(map[string]any, len(doc))
	for name, raw := range doc {
		loaded, err := Load(rec.Fields[name], raw)
		if err != nil {
			return nil, fieldErr(rec, name, err)
		}
		out[name] = loaded
	}
	return out, nil
}

// DumpRecord encodes every field of a typed record per the schema.
func DumpRecord(rec *Schema, fields map[string]any) (map[string]any, error) {
	if rec == nil {
		rec = &Schema{}
	}
	out := make(map[string]any, len(fields))
	for name, val := range fields {
		dumped, err := Dump(rec.Fields[name], val)
		if err != nil {
			return nil, fieldErr(rec, name, err)
		}
		out[name] = dumped
	}
	return out, nil
}

type fieldError struct {
	record string
	field  string
	err    error
}

func (e *fieldError) Error() string {
	return "rivet: field " + e.record + "." + e.field + ": " + e.err.Error()
}

func (e *fieldError) Unwrap() error { return e.err }

func fieldErr(rec *Schema, field string, err error) error {
	name := "record"
	if rec != nil && rec.Name != "" {
		name = rec.Name
	}
	return &fieldError{record: name, field: field, err: err}
}
