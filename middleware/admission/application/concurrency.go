package application

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas de
// geração em andamento, por chamador, sem saber nada sobre HTTP.
//
// A capacidade vem do tier: chamadores ENTERPRISE podem ter mais gerações
// simultâneas que FREE.
type ConcurrencyService struct {
	Pools          domain.SlotPools
	CapForTier     func(domain.Tier) int
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga para o chamador.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
// Capacidade <= 0 para o tier significa sem limite de concorrência.
func (s ConcurrencyService) Acquire(ctx context.Context, id domain.Identity) (func(), bool) {
	if s.Pools == nil || s.CapForTier == nil {
		return func() {}, true
	}

	capacity := s.CapForTier(id.Tier.Normalize())
	if capacity <= 0 {
		return func() {}, true
	}

	pool := s.Pools.Get(id.CallerID, capacity)

	if s.AcquireTimeout <= 0 {
		return pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return pool.Acquire(acqCtx)
}
