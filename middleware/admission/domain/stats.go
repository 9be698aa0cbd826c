package domain

import (
	"context"
	"time"
)

// UsageEvent representa o desfecho de uma decisão de admissão, com o custo
// real medido (tokens) quando a operação chegou a executar.
//
// Observação: cuidado com cardinalidade — gravar CallerID/Feature sem
// controle pode explodir o número de chaves no Redis.
type UsageEvent struct {
	CallerID string
	Tier     Tier
	Feature  string
	Allowed  bool
	// Cost é o custo real consumido (zero para negadas e para operações
	// upstream que falharam).
	Cost int64

	At time.Time
}

// UsageSink é a estratégia de persistência das estatísticas de uso.
//
// Implementações podem gravar em Redis, memória, etc. Quem chama deve
// tratar erro como best-effort (não derrubar a requisição).
type UsageSink interface {
	Record(ctx context.Context, ev UsageEvent) error
}
