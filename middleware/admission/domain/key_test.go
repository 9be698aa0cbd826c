package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowKey_DeterministicPerScope(t *testing.T) {
	id := Identity{CallerID: "caller-1", Tier: TierPro}

	assert.Equal(t, "adm:global:caller-1",
		WindowKey("adm", "global", ScopeCaller, id, "banner"))
	assert.Equal(t, "adm:generation:caller-1:banner",
		WindowKey("adm", "generation", ScopeCallerFeature, id, "banner"))
	assert.Equal(t, "adm:tier-pool:PRO:banner",
		WindowKey("adm", "tier-pool", ScopeTierFeature, id, "banner"))

	// mesma tupla, mesma chave — é o que compartilha janelas entre instâncias
	again := WindowKey("adm", "global", ScopeCaller, id, "banner")
	assert.Equal(t, "adm:global:caller-1", again)
}

func TestWindowKey_TierScopeNormalizesUnknownTier(t *testing.T) {
	id := Identity{CallerID: "c", Tier: Tier("GOLD")}
	key := WindowKey("adm", "tier-pool", ScopeTierFeature, id, "banner")
	assert.Equal(t, "adm:tier-pool:FREE:banner", key)
}

func TestParseScope(t *testing.T) {
	s, ok := ParseScope(" Caller ")
	require.True(t, ok)
	assert.Equal(t, ScopeCaller, s)

	_, ok = ParseScope("per-galaxy")
	assert.False(t, ok)
}

func TestEncodeMember_UniqueAndCarriesCost(t *testing.T) {
	now := time.Now()

	a := EncodeMember(now, 42)
	b := EncodeMember(now, 42)
	assert.NotEqual(t, a, b, "members from the same instant must not collide")

	assert.EqualValues(t, 42, MemberCost(a))
	assert.True(t, strings.HasSuffix(a, "@42"))

	assert.EqualValues(t, 0, MemberCost(EncodeMember(now, -5)))
}

func TestMemberCost_MalformedIsZero(t *testing.T) {
	assert.EqualValues(t, 0, MemberCost("garbage"))
	assert.EqualValues(t, 0, MemberCost("123-abc@notanumber"))
	assert.EqualValues(t, 0, MemberCost(""))
}
