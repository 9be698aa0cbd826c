package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tier classifica o chamador (nível de assinatura). O tier decide qual
// configuração de quota se aplica em cada limiter.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierBasic      Tier = "BASIC"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// Tiers lista os tiers conhecidos, do mais restritivo ao mais permissivo.
var Tiers = []Tier{TierFree, TierBasic, TierPro, TierEnterprise}

// ParseTier normaliza uma string para um Tier conhecido.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Normalize devolve o próprio tier se conhecido; caso contrário, FREE.
//
// Tier desconhecido nunca vira "sem limite": cai no tier mais restritivo.
func (t Tier) Normalize() Tier {
	if parsed, ok := ParseTier(string(t)); ok {
		return parsed
	}
	return TierFree
}

// Identity é a identidade já resolvida pelo colaborador de autenticação.
// Imutável durante a vida da requisição.
type Identity struct {
	CallerID string
	Tier     Tier
}

// TierConfig é a quota de um par (tier, limiter).
//
// Definida estaticamente em configuração; nunca muda em runtime.
type TierConfig struct {
	// Window é a duração da janela deslizante.
	Window time.Duration
	// MaxRequests é o máximo de requisições admitidas dentro da janela.
	MaxRequests int64
	// MaxCostPerRequest é o teto de custo (ex: tokens) de uma única
	// requisição. Zero desabilita o teto.
	MaxCostPerRequest int64
	// MaxCostPerWindow é o orçamento de custo acumulado dentro da janela.
	// Zero desabilita. Só é aplicado em stages otimistas (ver Counter).
	MaxCostPerWindow int64
}

// TierTable é a tabela estática limiter -> tier -> TierConfig.
//
// É uma função pura de lookup: nada de lambdas por tier embutidas no caminho
// da requisição. Mudança de quota é mudança de configuração, não de código.
type TierTable struct {
	limits map[string]map[Tier]TierConfig
}

// NewTierTable valida e constrói a tabela. Todo limiter precisa ter ao menos
// a linha FREE (fallback de tier desconhecido).
func NewTierTable(limits map[string]map[Tier]TierConfig) (*TierTable, error) {
	for name, byTier := range limits {
		if len(byTier) == 0 {
			return nil, fmt.Errorf("limiter %q: no tier configs", name)
		}
		if _, ok := byTier[TierFree]; !ok {
			return nil, fmt.Errorf("limiter %q: missing FREE tier config", name)
		}
		for tier, cfg := range byTier {
			if _, ok := ParseTier(string(tier)); !ok {
				return nil, fmt.Errorf("limiter %q: unknown tier %q", name, tier)
			}
			if cfg.Window <= 0 {
				return nil, fmt.Errorf("limiter %q tier %s: window must be > 0", name, tier)
			}
			if cfg.MaxRequests <= 0 {
				return nil, fmt.Errorf("limiter %q tier %s: max requests must be > 0", name, tier)
			}
			if cfg.MaxCostPerRequest < 0 || cfg.MaxCostPerWindow < 0 {
				return nil, fmt.Errorf("limiter %q tier %s: cost limits must be >= 0", name, tier)
			}
		}
	}
	return &TierTable{limits: limits}, nil
}

// Limiters lista os nomes de limiter conhecidos pela tabela.
func (t *TierTable) Limiters() []string {
	names := make([]string, 0, len(t.limits))
	for name := range t.limits {
		names = append(names, name)
	}
	return names
}

// Knows informa se o limiter existe na tabela.
func (t *TierTable) Knows(limiter string) bool {
	_, ok := t.limits[limiter]
	return ok
}

// Resolve devolve a TierConfig de (tier, limiter).
//
// Tier desconhecido resolve como FREE. Limiter desconhecido é erro de
// configuração: a cadeia deve ter sido validada no boot, então esse caminho
// não deve acontecer em runtime.
func (t *TierTable) Resolve(limiter string, tier Tier) (TierConfig, error) {
	byTier, ok := t.limits[limiter]
	if !ok {
		return TierConfig{}, fmt.Errorf("unknown limiter %q", limiter)
	}
	cfg, ok := byTier[tier.Normalize()]
	if !ok {
		cfg = byTier[TierFree]
	}
	return cfg, nil
}
