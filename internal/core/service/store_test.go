package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/api/metrics"
	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/infrastructure/codec"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubKV struct {
	items   map[string]string
	setErr  error
	getErr  error
	removed []string
}

func newStubKV() *stubKV {
	return &stubKV{items: make(map[string]string)}
}

func (s *stubKV) Get(_ context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *stubKV) Set(_ context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.items[key] = value
	return nil
}

func (s *stubKV) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	delete(s.items, key)
	return nil
}

type unavailableKV struct{}

func (unavailableKV) Get(context.Context, string) (string, bool, error) {
	return "", false, domain.ErrStorageUnavailable
}
func (unavailableKV) Set(context.Context, string, string) error { return domain.ErrStorageUnavailable }
func (unavailableKV) Remove(context.Context, string) error       { return domain.ErrStorageUnavailable }

func newTestStore(kv *stubKV, opts ...StoreOption) *Store {
	return NewStore(domain.NamespaceLocal, kv, codec.NewGzip(), zerolog.Nop(), opts...)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestStore_WriteRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	values := []any{
		map[string]any{"a": float64(1), "nested": map[string]any{"b": []any{"x", true}}},
		"alice@example.com",
		float64(42),
		[]any{float64(1), "two", nil},
		"ünïcødé ✓",
	}

	for _, v := range values {
		if got := s.Write(ctx, "k", v); !reflect.DeepEqual(got, v) {
			t.Fatalf("Write returned %v, want input %v", got, v)
		}
		if got := s.Read(ctx, "k"); !reflect.DeepEqual(got, v) {
			t.Fatalf("Read = %#v, want %#v", got, v)
		}
	}
}

func TestStore_WriteUsesVersionedCompressedSlot(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	s.Write(ctx, "theme", map[string]string{"mode": "dark"})

	raw, ok := kv.items["theme_1"]
	if !ok {
		t.Fatalf("expected physical key theme_1, have %v", kv.items)
	}
	if _, bare := kv.items["theme"]; bare {
		t.Fatalf("value must not be stored under the bare key")
	}
	text, err := codec.NewGzip().Decompress(raw)
	if err != nil {
		t.Fatalf("stored value is not compressed text: %v", err)
	}
	if text != `{"mode":"dark"}` {
		t.Fatalf("unexpected stored json: %s", text)
	}
}

func TestStore_WithVersion(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv, WithVersion(3))

	s.Write(ctx, "theme", "dark")
	if _, ok := kv.items["theme_3"]; !ok {
		t.Fatalf("expected theme_3, have %v", kv.items)
	}
	if s.Version() != 3 {
		t.Fatalf("Version() = %d", s.Version())
	}

	// A store on the old version does not see the new slot.
	old := newTestStore(kv)
	if got := old.Read(ctx, "theme"); got != nil {
		t.Fatalf("expected nil across versions, got %v", got)
	}
}

func TestStore_Load_Typed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newStubKV())

	in := domain.AuthUserInfo{Tier: "pro", Workspace: "w1"}
	s.Write(ctx, "user", in)

	var out domain.AuthUserInfo
	if !s.Load(ctx, "user", &out) {
		t.Fatalf("Load failed")
	}
	if out != in {
		t.Fatalf("Load = %+v, want %+v", out, in)
	}
}

func TestStore_ReadMissing_ReturnsNilAndEvicts(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	if got := s.Read(ctx, "ghost"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if len(kv.removed) != 1 || kv.removed[0] != "ghost_1" {
		t.Fatalf("expected eviction of ghost_1, removed=%v", kv.removed)
	}
}

func TestStore_CorruptSlot_SelfHeals(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	before := testutil.ToFloat64(metrics.StoreEvictionsTotal.WithLabelValues("local"))

	kv.items["k_1"] = "%%% definitely not gzip %%%"
	if got := s.Read(ctx, "k"); got != nil {
		t.Fatalf("expected nil for corrupt slot, got %v", got)
	}
	if _, ok := kv.items["k_1"]; ok {
		t.Fatalf("corrupt slot was not evicted")
	}

	after := testutil.ToFloat64(metrics.StoreEvictionsTotal.WithLabelValues("local"))
	if after-before != 1 {
		t.Fatalf("expected one eviction recorded, got %v", after-before)
	}
}

func TestStore_ValidCompressionInvalidJSON_SelfHeals(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	enc, _ := codec.NewGzip().Compress("{not json")
	kv.items["k_1"] = enc

	if got := s.Read(ctx, "k"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if _, ok := kv.items["k_1"]; ok {
		t.Fatalf("slot was not evicted")
	}
}

func TestStore_DeleteThenRead(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	s.Write(ctx, "k", map[string]any{"a": 1})
	if got := s.Write(ctx, "k", nil); got != nil {
		t.Fatalf("Write(nil) = %v, want nil", got)
	}
	if got := s.Read(ctx, "k"); got != nil {
		t.Fatalf("expected nil after delete, got %v", got)
	}
}

// Deleting removes the bare key as well as the versioned slot.
func TestStore_DeleteRemovesBareAndVersionedKeys(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	kv.items["legacy"] = "old format"
	s.Write(ctx, "legacy", "new")
	kv.removed = nil

	s.Delete(ctx, "legacy")

	if !reflect.DeepEqual(kv.removed, []string{"legacy", "legacy_1"}) {
		t.Fatalf("unexpected removals: %v", kv.removed)
	}
	if len(kv.items) != 0 {
		t.Fatalf("expected empty store, have %v", kv.items)
	}
}

func TestStore_Unavailable_FailsSoft(t *testing.T) {
	ctx := context.Background()
	s := NewStore(domain.NamespaceSession, unavailableKV{}, codec.NewGzip(), zerolog.Nop())

	if got := s.Write(ctx, "k", map[string]int{"a": 1}); got != nil {
		t.Fatalf("Write on unavailable storage = %v, want nil", got)
	}
	if got := s.Read(ctx, "k"); got != nil {
		t.Fatalf("Read on unavailable storage = %v, want nil", got)
	}
	if got := s.Write(ctx, "k", nil); got != nil {
		t.Fatalf("delete on unavailable storage = %v, want nil", got)
	}
}

func TestStore_SetFailure_ReturnsValueAndDropsSlot(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	kv.items["k_1"] = "stale"
	kv.setErr = errors.New("quota exceeded")
	s := newTestStore(kv)

	v := map[string]any{"big": "payload"}
	if got := s.Write(ctx, "k", v); !reflect.DeepEqual(got, v) {
		t.Fatalf("Write = %v, want the input value", got)
	}
	if _, ok := kv.items["k_1"]; ok {
		t.Fatalf("stale slot should have been removed after failed write")
	}
}

func TestStore_Put_ReportsFailures(t *testing.T) {
	ctx := context.Background()
	setErr := errors.New("quota exceeded")
	kv := newStubKV()
	kv.items["k_1"] = "stale"
	kv.setErr = setErr
	s := newTestStore(kv)

	if err := s.Put(ctx, "k", "v"); !errors.Is(err, setErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if _, ok := kv.items["k_1"]; ok {
		t.Fatalf("stale slot should have been removed after failed put")
	}

	if err := s.Put(ctx, "k", make(chan int)); err == nil {
		t.Fatalf("expected encode error")
	}

	off := NewStore(domain.NamespaceSession, unavailableKV{}, codec.NewGzip(), zerolog.Nop())
	if err := off.Put(ctx, "k", "v"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	kv.setErr = nil
	if err := s.Put(ctx, "k", "v"); err != nil || kv.items["k_1"] == "" {
		t.Fatalf("Put = %v, items %v", err, kv.items)
	}
}

func TestStore_WriteTypedNilDeletes(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	type prefs struct{ Dark bool }
	for _, v := range []any{(*prefs)(nil), map[string]any(nil), []string(nil)} {
		s.Write(ctx, "k", "present")
		if got := s.Write(ctx, "k", v); got != nil {
			t.Fatalf("Write(%T nil) = %v, want nil", v, got)
		}
		if _, ok := kv.items["k_1"]; ok {
			t.Fatalf("Write(%T nil) should delete the slot, have %v", v, kv.items)
		}
	}
}

func TestStore_UnencodableValue(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	s := newTestStore(kv)

	ch := make(chan int)
	if got := s.Write(ctx, "k", ch); got == nil {
		t.Fatalf("Write should return the input value on encode failure")
	}
	if len(kv.items) != 0 {
		t.Fatalf("nothing should be stored, have %v", kv.items)
	}
}

func TestStore_GetError_ReturnsNilWithoutEviction(t *testing.T) {
	ctx := context.Background()
	kv := newStubKV()
	kv.getErr = errors.New("connection reset")
	s := newTestStore(kv)

	if got := s.Read(ctx, "k"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if len(kv.removed) != 0 {
		t.Fatalf("transient read errors must not evict, removed=%v", kv.removed)
	}
}

func TestStores_For(t *testing.T) {
	local := newTestStore(newStubKV())
	session := NewStore(domain.NamespaceSession, newStubKV(), codec.NewGzip(), zerolog.Nop())
	stores := Stores{Local: local, Session: session}

	if stores.For(domain.NamespaceLocal) != local {
		t.Fatalf("expected local store")
	}
	if stores.For(domain.NamespaceSession) != session {
		t.Fatalf("expected session store")
	}
	if session.Namespace() != domain.NamespaceSession {
		t.Fatalf("unexpected namespace %s", session.Namespace())
	}
}
