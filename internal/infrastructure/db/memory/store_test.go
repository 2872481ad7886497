package memory

import (
	"context"
	"testing"
)

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, ok, _ := s.Get(ctx, "k_1"); ok {
		t.Fatalf("expected empty store")
	}

	_ = s.Set(ctx, "k_1", "v")
	if v, ok, err := s.Get(ctx, "k_1"); !ok || v != "v" || err != nil {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	_ = s.Remove(ctx, "k_1")
	if _, ok, _ := s.Get(ctx, "k_1"); ok {
		t.Fatalf("expected key removed")
	}
}
