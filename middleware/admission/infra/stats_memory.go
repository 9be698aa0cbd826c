package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

type UsageCounters struct {
	Allowed int64
	Denied  int64
	Cost    int64
}

// MemoryUsageStats é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryUsageStats struct {
	mu        sync.Mutex
	total     UsageCounters
	byFeature map[string]UsageCounters
	byCaller  map[string]UsageCounters

	trackCallers bool
}

type MemoryUsageOption func(*MemoryUsageStats)

func WithTrackCallers(track bool) MemoryUsageOption {
	return func(s *MemoryUsageStats) { s.trackCallers = track }
}

func NewMemoryUsageStats(opts ...MemoryUsageOption) *MemoryUsageStats {
	s := &MemoryUsageStats{
		byFeature: make(map[string]UsageCounters),
		byCaller:  make(map[string]UsageCounters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryUsageStats) Record(_ context.Context, ev domain.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bump := func(c UsageCounters) UsageCounters {
		if ev.Allowed {
			c.Allowed++
			c.Cost += ev.Cost
		} else {
			c.Denied++
		}
		return c
	}

	s.total = bump(s.total)
	if ev.Feature != "" {
		s.byFeature[ev.Feature] = bump(s.byFeature[ev.Feature])
	}
	if s.trackCallers && ev.CallerID != "" {
		s.byCaller[ev.CallerID] = bump(s.byCaller[ev.CallerID])
	}
	return nil
}

func (s *MemoryUsageStats) Total() UsageCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryUsageStats) ByFeature() map[string]UsageCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]UsageCounters, len(s.byFeature))
	for k, v := range s.byFeature {
		out[k] = v
	}
	return out
}

func (s *MemoryUsageStats) ByCaller() map[string]UsageCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]UsageCounters, len(s.byCaller))
	for k, v := range s.byCaller {
		out[k] = v
	}
	return out
}
