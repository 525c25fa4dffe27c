package cache

import (
	"context"
	"testing"
	"time"
)

// TestNoOpCache verifies that NoOpCache never stores anything
func TestNoOpCache(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	_, ok, err := cache.GetAnonymized(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if ok {
		t.Errorf("Expected cache miss")
	}

	if err := cache.SetAnonymized(ctx, "test-key", "[Candidate] led a team.", time.Hour); err != nil {
		t.Errorf("Expected no error on SetAnonymized, got %v", err)
	}

	// Still a miss: nothing was actually cached
	_, ok, err = cache.GetAnonymized(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if ok {
		t.Errorf("Expected cache miss after set on no-op cache")
	}

	if err := cache.Close(); err != nil {
		t.Errorf("Expected no error on Close, got %v", err)
	}
}

func TestKey(t *testing.T) {
	a := Key("v1", "Jane Doe led a team.")
	if len(a) != 64 {
		t.Fatalf("Expected 64 hex chars, got %d", len(a))
	}
	if a != Key("v1", "Jane Doe led a team.") {
		t.Errorf("Expected stable key")
	}
	if a == Key("v2", "Jane Doe led a team.") {
		t.Errorf("Expected prompt version to change the key")
	}
	if a == Key("v1", "Jane Doe led a team") {
		t.Errorf("Expected text to change the key")
	}
}
