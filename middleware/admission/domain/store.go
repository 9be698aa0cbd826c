package domain

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable sinaliza falha de rede/timeout contra o store.
// O Counter captura esse erro e converte em fail-open; ele nunca chega
// ao middleware como erro.
var ErrStoreUnavailable = errors.New("window store unavailable")

// WindowStore é o contrato fino sobre o store compartilhado (Redis ou
// equivalente com primitivas de sorted set + TTL). Nenhuma regra de negócio
// aqui: só operações de conjunto ordenado por score.
//
// Scores são instantes em milissegundos unix. Cada operação é uma ida à
// rede e pode falhar de forma independente; nenhuma atomicidade entre
// chamadas é assumida (ver AtomicAdmitter para a variante estrita).
type WindowStore interface {
	// Add insere um membro com o score dado.
	Add(ctx context.Context, key, member string, score int64) error
	// RemoveBelow remove membros com score estritamente menor que cutoff.
	RemoveBelow(ctx context.Context, key string, cutoff int64) error
	// CountInRange conta membros com score em [lo, hi].
	CountInRange(ctx context.Context, key string, lo, hi int64) (int64, error)
	// ListInRange lista membros com score em [lo, hi], em ordem de score.
	ListInRange(ctx context.Context, key string, lo, hi int64) ([]string, error)
	// SetExpiry aplica TTL no conjunto inteiro, para que chaves abandonadas
	// se limpem sozinhas sem processo varredor.
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
	// Reset apaga a chave (uso administrativo, fluxo de suporte).
	Reset(ctx context.Context, key string) error
	// Ping verifica a saúde do store (modo degradado no health check).
	Ping(ctx context.Context) error
}

// AtomicAdmitter é a capacidade opcional de admissão estrita: checagem e
// commit em uma única operação indivisível no servidor do store (script),
// eliminando a janela de corrida do check-then-commit às custas de uma
// dependência específica do store.
type AtomicAdmitter interface {
	// TryAdmit poda a janela, conta e — se count < limit — insere o membro
	// e aplica o TTL, tudo de forma atômica. Devolve a contagem após a
	// operação e se o membro foi admitido.
	TryAdmit(ctx context.Context, key, member string, now int64, window time.Duration, limit int64, ttl time.Duration) (count int64, admitted bool, err error)
}

// FailMode decide o comportamento de um limiter quando o store falha.
//
// A escolha é por limiter, explícita em configuração: disponibilidade de uma
// feature paga (fail-open) versus cobrança estrita (fail-closed).
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// ParseFailMode normaliza uma string de configuração para um FailMode.
func ParseFailMode(s string) (FailMode, bool) {
	switch FailMode(s) {
	case FailOpen, "":
		return FailOpen, true
	case FailClosed:
		return FailClosed, true
	}
	return "", false
}

// AdmissionResult é o veredito de uma checagem contra uma janela.
// Calculado fresco a cada checagem; nunca persistido.
type AdmissionResult struct {
	Allowed   bool
	Remaining int64
	Limit     int64
	// ResetAt é um limite superior aproximado: now + window. O reset real
	// acontece quando a entrada sobrevivente mais antiga envelhece, mas um
	// limite fixo para frente é aceitável para o Retry-After.
	ResetAt time.Time
}
