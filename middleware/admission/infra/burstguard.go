package infra

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BurstGuard é um pré-filtro local de rajada: token bucket (x/time/rate) por
// chave, com cache e limpeza periódica.
//
// Ele é o primeiro elo barato da cadeia: segura rajadas óbvias sem nenhuma
// ida ao store compartilhado. Não substitui as janelas distribuídas — cada
// instância tem o seu — apenas reduz round-trips sob abuso.
type BurstGuard struct {
	mu           sync.Mutex
	entries      map[string]*guardEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type guardEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BurstGuardOption func(*BurstGuard)

func WithGuardIdleTTL(d time.Duration) BurstGuardOption {
	return func(g *BurstGuard) { g.idleTTL = d }
}

func WithGuardCleanupEvery(d time.Duration) BurstGuardOption {
	return func(g *BurstGuard) { g.cleanupEvery = d }
}

func NewBurstGuard(rps float64, burst int, opts ...BurstGuardOption) *BurstGuard {
	g := &BurstGuard{
		entries:      make(map[string]*guardEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *BurstGuard) RPS() float64 { return float64(g.rps) }
func (g *BurstGuard) Burst() int   { return g.burst }

// Allow consome um token do bucket da chave, criando o bucket na primeira
// visita.
func (g *BurstGuard) Allow(key string) bool {
	now := time.Now()

	g.mu.Lock()
	ent, ok := g.entries[key]
	if !ok {
		ent = &guardEntry{lim: rate.NewLimiter(g.rps, g.burst)}
		g.entries[key] = ent
	}
	ent.lastSeen = now
	lim := ent.lim
	g.mu.Unlock()

	return lim.Allow()
}

func (g *BurstGuard) Cleanup() {
	cutoff := time.Now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, ent := range g.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(g.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas
// periodicamente. Pare cancelando o contexto.
func (g *BurstGuard) StartJanitor(ctx DoneContext) {
	if g.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(g.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem
// importar context aqui. (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
