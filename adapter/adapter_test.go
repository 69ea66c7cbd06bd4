package adapter_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jacentio/rivet/adapter"
	"github.com/jacentio/rivet/codec"
	"github.com/jacentio/rivet/pool"
)

// --- Fake store ---

// fakeStore is a shared in-memory store; each dialed connection operates on
// the same record map, the way pooled connections share one backend.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*fakeRecord
	fail    error
}

type fakeRecord struct {
	doc     adapter.Document
	version int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*fakeRecord)}
}

func (s *fakeStore) key(bucketType, bucket, id string) string {
	return bucketType + "/" + bucket + "/" + id
}

func (s *fakeStore) dial(ctx context.Context) (adapter.Client, error) {
	return &fakeConn{store: s}, nil
}

type fakeConn struct {
	store *fakeStore
}

func (c *fakeConn) Fetch(ctx context.Context, bucketType, bucket, id string) (adapter.CausalContext, adapter.Document, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", nil, s.fail
	}
	rec, ok := s.records[s.key(bucketType, bucket, id)]
	if !ok {
		return "", nil, adapter.ErrNotFound
	}
	return adapter.CausalContext(strconv.Itoa(rec.version)), rec.doc, nil
}

func (c *fakeConn) Update(ctx context.Context, bucketType, bucket, id string, cc adapter.CausalContext, doc adapter.Document) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	key := s.key(bucketType, bucket, id)
	if cc == "" {
		s.records[key] = &fakeRecord{doc: doc, version: 1}
		return nil
	}
	rec, ok := s.records[key]
	if !ok {
		return adapter.ErrNotFound
	}
	rec.doc = doc
	rec.version++
	return nil
}

func (c *fakeConn) Delete(ctx context.Context, bucketType, bucket, id string) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.records, s.key(bucketType, bucket, id))
	return nil
}

func (c *fakeConn) Search(ctx context.Context, index, bucket, field, value string) ([]adapter.Document, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	var docs []adapter.Document
	for key, rec := range s.records {
		if !strings.Contains(key, "/"+bucket+"/") {
			continue
		}
		if fmt.Sprint(rec.doc[field]) == value {
			docs = append(docs, rec.doc)
		}
	}
	return docs, nil
}

func (c *fakeConn) RunCommand(ctx context.Context, command string) (string, error) {
	if c.store.fail != nil {
		return "", c.store.fail
	}
	return "ok: " + command, nil
}

func (c *fakeConn) Close() error { return nil }

// --- Helpers ---

func postSchema() *codec.Schema {
	return &codec.Schema{
		Name: "post",
		Key:  "id",
		Fields: map[string]codec.Type{
			"id":    codec.Scalar(codec.BinaryID),
			"name":  codec.Scalar(codec.BinaryID),
			"views": codec.Scalar(codec.Integer),
			"tags":  codec.ListOf(codec.Scalar(codec.BinaryID)),
		},
	}
}

func newAdapter(t *testing.T, store *fakeStore) (*adapter.Adapter, *bytes.Buffer) {
	t.Helper()
	p, err := pool.New(pool.Config{Size: 2}, store.dial, adapter.Client.Close)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return adapter.New(p, adapter.Config{BucketType: "rivet"}, logger), &buf
}

// --- Tests ---

func TestInsertDumpsCollectionsAndReadsBack(t *testing.T) {
	store := newFakeStore()
	a, _ := newAdapter(t, store)
	ctx := context.Background()
	schema := postSchema()

	err := a.Insert(ctx, schema, "posts", map[string]any{
		"id":   "p1",
		"name": "a",
		"tags": []string{"x", "y"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// The stored document is the wire shape: index-keyed map for the list.
	stored := store.records["rivet/posts/p1"].doc
	wantTags := map[string]any{"0": "x", "1": "y"}
	if !reflect.DeepEqual(stored["tags"], wantTags) {
		t.Errorf("expected stored tags %v, got %v", wantTags, stored["tags"])
	}
	if stored["name"] != "a" {
		t.Errorf("expected stored name %q, got %v", "a", stored["name"])
	}

	rec, err := a.Get(ctx, schema, "posts", "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(rec.Fields["tags"], []any{"x", "y"}) {
		t.Errorf("expected tags [x y] after read back, got %v", rec.Fields["tags"])
	}
	if rec.Context == "" {
		t.Error("expected Get to return a causal context")
	}
}

func TestInsertRequiresPrimaryKey(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())

	err := a.Insert(context.Background(), postSchema(), "posts", map[string]any{"name": "a"})
	if err == nil || !strings.Contains(err.Error(), "primary key") {
		t.Errorf("expected missing primary key error, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())

	_, err := a.Get(context.Background(), postSchema(), "posts", "nope")
	if !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRequiresCausalContext(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())
	schema := postSchema()

	fieldSets := []map[string]any{
		{"name": "b"},
		{"name": "b", "views": int64(2)},
		{},
	}
	for _, fields := range fieldSets {
		err := a.Update(context.Background(), schema, "posts", adapter.Filter{"id": "p1"}, fields, "")
		if !errors.Is(err, adapter.ErrNoCausalContext) {
			t.Errorf("fields %v: expected ErrNoCausalContext, got %v", fields, err)
		}
		if !errors.Is(err, adapter.ErrUnsupported) {
			t.Errorf("fields %v: expected the fault to match ErrUnsupported", fields)
		}
	}
}

func TestUpdateRejectsNonIdentifierFilter(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())
	schema := postSchema()
	ctx := context.Background()

	filters := []adapter.Filter{
		{"id": "p1", "name": "a"},
		{"name": "a"},
		{},
	}
	for _, filter := range filters {
		err := a.Update(ctx, schema, "posts", filter, map[string]any{"name": "b"}, "1")
		if !errors.Is(err, adapter.ErrFilter) {
			t.Errorf("filter %v: expected ErrFilter, got %v", filter, err)
		}

		err = a.Delete(ctx, schema, "posts", filter)
		if !errors.Is(err, adapter.ErrFilter) {
			t.Errorf("delete filter %v: expected ErrFilter, got %v", filter, err)
		}
	}
}

func TestUpdateRejectsReturning(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())

	err := a.Update(context.Background(), postSchema(), "posts",
		adapter.Filter{"id": "p1"}, map[string]any{"name": "b"}, "1", "name")
	if !errors.Is(err, adapter.ErrReturning) {
		t.Errorf("expected ErrReturning, got %v", err)
	}
	var ue *adapter.UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedError, got %T", err)
	}
	if ue.Schema != "post" {
		t.Errorf("expected fault to name schema %q, got %q", "post", ue.Schema)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	store := newFakeStore()
	a, _ := newAdapter(t, store)
	ctx := context.Background()
	schema := postSchema()

	if err := a.Insert(ctx, schema, "posts", map[string]any{"id": "p1", "name": "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	rec, err := a.Get(ctx, schema, "posts", "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	err = a.Update(ctx, schema, "posts", adapter.Filter{"id": "p1"},
		map[string]any{"id": "p1", "name": "b", "views": int64(7)}, rec.Context)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, err = a.Get(ctx, schema, "posts", "p1")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if rec.Fields["name"] != "b" || rec.Fields["views"] != int64(7) {
		t.Errorf("unexpected fields after update: %v", rec.Fields)
	}
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	a, _ := newAdapter(t, store)
	ctx := context.Background()
	schema := postSchema()

	if err := a.Insert(ctx, schema, "posts", map[string]any{"id": "p1", "name": "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := a.Delete(ctx, schema, "posts", adapter.Filter{"id": "p1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := a.Get(ctx, schema, "posts", "p1"); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInsertAllAlwaysFails(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())
	schema := postSchema()
	ctx := context.Background()

	inputs := [][]map[string]any{
		nil,
		{},
		{{"id": "p1"}},
		{{"id": "p1"}, {"id": "p2"}},
	}
	for _, rows := range inputs {
		err := a.InsertAll(ctx, schema, "posts", rows)
		if !errors.Is(err, adapter.ErrUnsupported) {
			t.Errorf("rows %v: expected ErrUnsupported, got %v", rows, err)
		}
	}
}

func TestSearch(t *testing.T) {
	store := newFakeStore()
	a, _ := newAdapter(t, store)
	ctx := context.Background()
	schema := postSchema()

	for i, name := range []string{"a", "a", "b"} {
		err := a.Insert(ctx, schema, "posts", map[string]any{
			"id":   fmt.Sprintf("p%d", i),
			"name": name,
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, records, err := a.Search(ctx, schema, "posts_idx", "posts", "name", "a")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if n != 2 || len(records) != 2 {
		t.Fatalf("expected 2 rows, got n=%d len=%d", n, len(records))
	}
	for _, rec := range records {
		if rec.Fields["name"] != "a" {
			t.Errorf("unexpected record in result: %v", rec.Fields)
		}
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	a, _ := newAdapter(t, store)
	schema := postSchema()

	boom := errors.New("store down")
	store.fail = boom

	if _, err := a.Get(context.Background(), schema, "posts", "p1"); !errors.Is(err, boom) {
		t.Errorf("expected store failure to propagate, got %v", err)
	}
	if err := a.Insert(context.Background(), schema, "posts", map[string]any{"id": "p1"}); !errors.Is(err, boom) {
		t.Errorf("expected store failure to propagate, got %v", err)
	}
}

func TestGenerateID(t *testing.T) {
	a, _ := newAdapter(t, newFakeStore())

	for _, kind := range []adapter.IDKind{adapter.IDBinary, adapter.IDEmbed} {
		id, err := a.GenerateID(kind)
		if err != nil {
			t.Fatalf("GenerateID(%v): %v", kind, err)
		}
		if len(id) == 0 {
			t.Errorf("GenerateID(%v) returned an empty id", kind)
		}
	}

	_, err := a.GenerateID(adapter.IDSerial)
	if !errors.Is(err, adapter.ErrIDKind) {
		t.Errorf("expected ErrIDKind for serial ids, got %v", err)
	}
	if !errors.Is(err, adapter.ErrUnsupported) {
		t.Error("expected the fault to match ErrUnsupported")
	}
}

func TestRunCommand(t *testing.T) {
	a, buf := newAdapter(t, newFakeStore())

	out, err := a.RunCommand(context.Background(), "bucket-type status rivet")
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if out != "ok: bucket-type status rivet" {
		t.Errorf("unexpected command output %q", out)
	}
	if !strings.Contains(buf.String(), "run_command command=bucket-type status rivet") {
		t.Errorf("expected command call to be logged, got %q", buf.String())
	}
}

func TestCallsAreLoggedWithTimings(t *testing.T) {
	store := newFakeStore()
	a, buf := newAdapter(t, store)
	schema := postSchema()

	if err := a.Insert(context.Background(), schema, "posts", map[string]any{"id": "p1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "insert bucket_type=rivet bucket=posts id=p1") {
		t.Errorf("expected formatted operation line, got %q", line)
	}
	if !strings.Contains(line, "queue_us=") || !strings.Contains(line, "exec_us=") {
		t.Errorf("expected queue and exec timings, got %q", line)
	}
}
