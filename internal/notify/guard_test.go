package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestGuard(t *testing.T) *RedisGuard {
	t.Helper()
	s := miniredis.RunT(t)
	guard, err := NewRedisGuard("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis guard: %v", err)
	}
	t.Cleanup(func() { _ = guard.Close() })
	return guard
}

func TestRedisGuardAdmitsEventOnce(t *testing.T) {
	guard := setupTestGuard(t)
	ctx := context.Background()

	first, err := guard.Once(ctx, "suggestion-created:sug_1")
	if err != nil {
		t.Fatalf("first Once failed: %v", err)
	}
	if !first {
		t.Fatal("expected first emission to be admitted")
	}

	second, err := guard.Once(ctx, "suggestion-created:sug_1")
	if err != nil {
		t.Fatalf("second Once failed: %v", err)
	}
	if second {
		t.Fatal("expected duplicate emission to be rejected")
	}
}

func TestRedisGuardSeparatesEventKeys(t *testing.T) {
	guard := setupTestGuard(t)
	ctx := context.Background()

	if first, _ := guard.Once(ctx, "collab:evt_1"); !first {
		t.Fatal("expected evt_1 to be admitted")
	}
	if first, _ := guard.Once(ctx, "collab:evt_2"); !first {
		t.Fatal("expected evt_2 to be admitted independently")
	}
}

func TestMemoryGuardAdmitsEventOnce(t *testing.T) {
	guard := NewMemoryGuard()
	ctx := context.Background()

	if first, err := guard.Once(ctx, "verdict-flip:evt_9"); err != nil || !first {
		t.Fatalf("expected first emission admitted, got first=%v err=%v", first, err)
	}
	if first, err := guard.Once(ctx, "verdict-flip:evt_9"); err != nil || first {
		t.Fatalf("expected duplicate rejected, got first=%v err=%v", first, err)
	}
}
