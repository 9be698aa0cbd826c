package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool simples baseado em channel com capacidade `max`.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// KeyedSlotPools mantém um pool por chave (chamador), criado sob demanda.
//
// A capacidade é fixada na primeira visita da chave; mudança de tier do
// chamador só vale para pools ainda não criados (aceitável: o processo
// reinicia em deploy e os pools são recriados).
type KeyedSlotPools struct {
	mu    sync.Mutex
	pools map[string]domain.SlotPool
}

func NewKeyedSlotPools() *KeyedSlotPools {
	return &KeyedSlotPools{pools: make(map[string]domain.SlotPool)}
}

// Get implementa domain.SlotPools.
func (k *KeyedSlotPools) Get(key string, capacity int) domain.SlotPool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if p, ok := k.pools[key]; ok {
		return p
	}
	p := NewChanPool(capacity)
	k.pools[key] = p
	return p
}
