package infra

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryWindowStore é um domain.WindowStore em memória.
//
// Útil para testes e para deployments de instância única (sem Redis).
// Não implementa a admissão atômica: o ponto da variante atômica é resolver
// corrida entre processos, o que não existe em memória compartilhada — o
// caminho otimista com mutex já reproduz a semântica observável.
type MemoryWindowStore struct {
	mu       sync.Mutex
	sets     map[string][]memoryEntry
	expireAt map[string]time.Time

	// Now permite injetar relógio em testes (expiração). Nil usa time.Now.
	Now func() time.Time
}

type memoryEntry struct {
	member string
	score  int64
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		sets:     make(map[string][]memoryEntry),
		expireAt: make(map[string]time.Time),
	}
}

func (s *MemoryWindowStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// dropIfExpired simula o TTL do Redis: chave vencida desaparece inteira.
// Chamar com o mutex já adquirido.
func (s *MemoryWindowStore) dropIfExpired(key string) {
	if exp, ok := s.expireAt[key]; ok && s.now().After(exp) {
		delete(s.sets, key)
		delete(s.expireAt, key)
	}
}

func (s *MemoryWindowStore) Add(_ context.Context, key, member string, score int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropIfExpired(key)

	entries := append(s.sets[key], memoryEntry{member: member, score: score})
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
	s.sets[key] = entries
	return nil
}

func (s *MemoryWindowStore) RemoveBelow(_ context.Context, key string, cutoff int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropIfExpired(key)

	entries := s.sets[key]
	kept := entries[:0]
	for _, e := range entries {
		if e.score >= cutoff {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(s.sets, key)
	} else {
		s.sets[key] = kept
	}
	return nil
}

func (s *MemoryWindowStore) CountInRange(_ context.Context, key string, lo, hi int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropIfExpired(key)

	var n int64
	for _, e := range s.sets[key] {
		if e.score >= lo && e.score <= hi {
			n++
		}
	}
	return n, nil
}

func (s *MemoryWindowStore) ListInRange(_ context.Context, key string, lo, hi int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropIfExpired(key)

	var members []string
	for _, e := range s.sets[key] {
		if e.score >= lo && e.score <= hi {
			members = append(members, e.member)
		}
	}
	return members, nil
}

func (s *MemoryWindowStore) SetExpiry(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[key]; ok {
		s.expireAt[key] = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryWindowStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	delete(s.expireAt, key)
	return nil
}

func (s *MemoryWindowStore) Ping(context.Context) error { return nil }
