package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLimits() map[string]map[Tier]TierConfig {
	return map[string]map[Tier]TierConfig{
		"global": {
			TierFree: {Window: time.Minute, MaxRequests: 10},
			TierPro:  {Window: time.Minute, MaxRequests: 100, MaxCostPerRequest: 1000},
		},
	}
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier(" pro ")
	require.True(t, ok)
	assert.Equal(t, TierPro, tier)

	_, ok = ParseTier("GOLD")
	assert.False(t, ok)
}

func TestTierNormalize_UnknownFallsBackToFree(t *testing.T) {
	assert.Equal(t, TierFree, Tier("GOLD").Normalize())
	assert.Equal(t, TierEnterprise, TierEnterprise.Normalize())
	assert.Equal(t, TierBasic, Tier("basic").Normalize())
}

func TestNewTierTable_RequiresFreeRow(t *testing.T) {
	_, err := NewTierTable(map[string]map[Tier]TierConfig{
		"global": {TierPro: {Window: time.Minute, MaxRequests: 10}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing FREE")
}

func TestNewTierTable_RejectsInvalidConfigs(t *testing.T) {
	cases := map[string]map[string]map[Tier]TierConfig{
		"zero window": {
			"g": {TierFree: {Window: 0, MaxRequests: 10}},
		},
		"zero max requests": {
			"g": {TierFree: {Window: time.Minute, MaxRequests: 0}},
		},
		"negative cost ceiling": {
			"g": {TierFree: {Window: time.Minute, MaxRequests: 1, MaxCostPerRequest: -1}},
		},
		"unknown tier key": {
			"g": {TierFree: {Window: time.Minute, MaxRequests: 1}, Tier("GOLD"): {Window: time.Minute, MaxRequests: 1}},
		},
	}
	for name, limits := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTierTable(limits)
			assert.Error(t, err)
		})
	}
}

func TestTierTable_Resolve(t *testing.T) {
	table, err := NewTierTable(validLimits())
	require.NoError(t, err)

	pro, err := table.Resolve("global", TierPro)
	require.NoError(t, err)
	assert.EqualValues(t, 100, pro.MaxRequests)

	// tier sem linha própria cai na FREE
	basic, err := table.Resolve("global", TierBasic)
	require.NoError(t, err)
	assert.EqualValues(t, 10, basic.MaxRequests)

	// tier desconhecido nunca vira "sem limite"
	unknown, err := table.Resolve("global", Tier("GOLD"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, unknown.MaxRequests)

	_, err = table.Resolve("nope", TierFree)
	assert.Error(t, err)
}
