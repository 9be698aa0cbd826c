package infra

import (
	"testing"
	"time"
)

func TestBurstGuard_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	g := NewBurstGuard(0.02, 1)

	if !g.Allow("k") {
		t.Fatalf("expected first Allow to be true")
	}
	if g.Allow("k") {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestBurstGuard_KeysAreIndependent(t *testing.T) {
	g := NewBurstGuard(0.02, 1)

	if !g.Allow("k1") {
		t.Fatalf("expected k1 to be allowed")
	}
	if !g.Allow("k2") {
		t.Fatalf("expected k2 to have its own bucket")
	}
}

func TestBurstGuard_CleanupResetsIdleKeys(t *testing.T) {
	g := NewBurstGuard(0.02, 1, WithGuardIdleTTL(2*time.Millisecond), WithGuardCleanupEvery(0))

	if !g.Allow("k") {
		t.Fatalf("expected first Allow to be true")
	}
	if g.Allow("k") {
		t.Fatalf("expected bucket to be drained")
	}

	time.Sleep(4 * time.Millisecond)
	g.Cleanup()

	if !g.Allow("k") {
		t.Fatalf("expected fresh bucket after cleanup")
	}
}
