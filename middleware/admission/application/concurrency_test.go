package application

import (
	"context"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyService_CapacityPerCaller(t *testing.T) {
	svc := ConcurrencyService{
		Pools:          infra.NewKeyedSlotPools(),
		CapForTier:     func(domain.Tier) int { return 1 },
		AcquireTimeout: 30 * time.Millisecond,
	}
	ctx := context.Background()
	id := domain.Identity{CallerID: "c1", Tier: domain.TierFree}

	release, ok := svc.Acquire(ctx, id)
	require.True(t, ok)

	// mesma chave, capacidade 1: segunda aquisição expira
	_, ok = svc.Acquire(ctx, id)
	assert.False(t, ok)

	// outro chamador tem pool próprio
	otherRelease, ok := svc.Acquire(ctx, domain.Identity{CallerID: "c2", Tier: domain.TierFree})
	require.True(t, ok)
	otherRelease()

	release()
	release2, ok := svc.Acquire(ctx, id)
	require.True(t, ok, "slot freed after release")
	release2()
}

func TestConcurrencyService_UnlimitedWhenCapZero(t *testing.T) {
	svc := ConcurrencyService{
		Pools:      infra.NewKeyedSlotPools(),
		CapForTier: func(domain.Tier) int { return 0 },
	}
	id := domain.Identity{CallerID: "c1", Tier: domain.TierEnterprise}

	for i := 0; i < 10; i++ {
		release, ok := svc.Acquire(context.Background(), id)
		require.True(t, ok)
		release()
	}
}

func TestConcurrencyService_NoPoolsAllows(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background(), domain.Identity{CallerID: "c1"})
	assert.True(t, ok)
	release()
}
