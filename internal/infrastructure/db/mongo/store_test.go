package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// These tests need a running MongoDB; set MONGO_URI to enable them.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "rechart_test_" + uuid.NewString()[:8], Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return NewStore(db, "local")
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Set(ctx, "theme_1", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "theme_1", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	v, ok, err := s.Get(ctx, "theme_1")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get = %q, %v, %v; want v2", v, ok, err)
	}

	if err := s.Remove(ctx, "theme_1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := s.Get(ctx, "theme_1"); ok || err != nil {
		t.Fatalf("expected missing after Remove, ok=%v err=%v", ok, err)
	}
}
