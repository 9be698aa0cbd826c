package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyStore conta leituras por chave, para observar o curto-circuito.
type spyStore struct {
	domain.WindowStore
	mu    sync.Mutex
	reads map[string]int
}

func newSpyStore(inner domain.WindowStore) *spyStore {
	return &spyStore{WindowStore: inner, reads: make(map[string]int)}
}

func (s *spyStore) CountInRange(ctx context.Context, key string, lo, hi int64) (int64, error) {
	s.mu.Lock()
	s.reads[key]++
	s.mu.Unlock()
	return s.WindowStore.CountInRange(ctx, key, lo, hi)
}

func testTable(t *testing.T) *domain.TierTable {
	t.Helper()
	table, err := domain.NewTierTable(map[string]map[domain.Tier]domain.TierConfig{
		"global": {
			domain.TierFree: {Window: time.Minute, MaxRequests: 10, MaxCostPerRequest: 2000},
		},
		"generation": {
			domain.TierFree: {Window: time.Minute, MaxRequests: 2, MaxCostPerRequest: 500},
		},
	})
	require.NoError(t, err)
	return table
}

func testChain(store domain.WindowStore, table *domain.TierTable, now *time.Time) Chain {
	return Chain{
		Stages: []Stage{
			{Name: "global", Scope: domain.ScopeCaller, FailMode: domain.FailOpen},
			{Name: "generation", Scope: domain.ScopeCallerFeature, FailMode: domain.FailOpen},
		},
		Tiers:     table,
		Counter:   testCounter(store, now),
		KeyPrefix: "adm",
		Feature:   "banner",
	}
}

func TestChain_AllowedReturnsCommitsAndTightest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ch := testChain(infra.NewMemoryWindowStore(), testTable(t), &now)
	id := domain.Identity{CallerID: "c1", Tier: domain.TierFree}

	v := ch.Evaluate(context.Background(), id)
	require.True(t, v.Allowed)

	// o mais apertado é o limiter estreito (remaining 1 vs 9)
	assert.Equal(t, "generation", v.TightestStage)
	assert.EqualValues(t, 1, v.Tightest.Remaining)

	require.Len(t, v.Commits, 2)
	assert.Equal(t, "adm:global:c1", v.Commits[0].Key)
	assert.Equal(t, "adm:generation:c1:banner", v.Commits[1].Key)
	assert.False(t, v.Commits[0].Committed)
}

func TestChain_DenialIdentifiesLimiterAndShortCircuits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mem := infra.NewMemoryWindowStore()
	spy := newSpyStore(mem)
	table := testTable(t)
	ch := testChain(spy, table, &now)
	id := domain.Identity{CallerID: "c1", Tier: domain.TierFree}
	ctx := context.Background()

	// esgota o limiter estreito
	genCfg, err := table.Resolve("generation", domain.TierFree)
	require.NoError(t, err)
	counter := testCounter(mem, &now)
	for i := 0; i < 2; i++ {
		require.NoError(t, counter.Commit(ctx, "adm:generation:c1:banner", genCfg, 1))
	}

	v := ch.Evaluate(ctx, id)
	require.False(t, v.Allowed)
	assert.Equal(t, "generation", v.DeniedBy)
	assert.EqualValues(t, 2, v.Denied.Limit)
	assert.Equal(t, time.Minute, v.DeniedWindow.Window)
	assert.Empty(t, v.Commits, "no commits due on denial")
}

func TestChain_ShortCircuitSkipsLaterStages(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mem := infra.NewMemoryWindowStore()
	spy := newSpyStore(mem)
	table := testTable(t)

	// inverte a ordem: o limitador estreito primeiro, já esgotado
	ch := testChain(spy, table, &now)
	ch.Stages = []Stage{
		{Name: "generation", Scope: domain.ScopeCallerFeature, FailMode: domain.FailOpen},
		{Name: "global", Scope: domain.ScopeCaller, FailMode: domain.FailOpen},
	}
	ctx := context.Background()

	genCfg, err := table.Resolve("generation", domain.TierFree)
	require.NoError(t, err)
	counter := testCounter(mem, &now)
	for i := 0; i < 2; i++ {
		require.NoError(t, counter.Commit(ctx, "adm:generation:c1:banner", genCfg, 1))
	}

	v := ch.Evaluate(ctx, domain.Identity{CallerID: "c1", Tier: domain.TierFree})
	require.False(t, v.Allowed)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	assert.Zero(t, spy.reads["adm:global:c1"], "denied at stage 1: stage 2 must not touch the store")
}

func TestChain_CostCeilingIsTheTightestNonZero(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ch := testChain(infra.NewMemoryWindowStore(), testTable(t), &now)

	ceiling := ch.CostCeiling(domain.Identity{CallerID: "c1", Tier: domain.TierFree})
	assert.EqualValues(t, 500, ceiling)
}

func TestChain_ValidateCatchesUnknownLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ch := testChain(infra.NewMemoryWindowStore(), testTable(t), &now)
	ch.Stages = append(ch.Stages, Stage{Name: "ghost", Scope: domain.ScopeCaller})

	assert.Error(t, ch.Validate())
}
