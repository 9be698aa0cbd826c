package application

import (
	"context"
	"log/slog"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// ttlSlack é a folga somada à janela no TTL do conjunto, para a chave se
// limpar sozinha sem cortar entradas ainda vivas.
const ttlSlack = time.Minute

// Counter decide admissão para uma chave de janela contra uma TierConfig,
// usando o algoritmo de janela deslizante sobre o WindowStore.
//
// A checagem (Check) é read-only: ela NÃO insere a entrada, de propósito —
// isso permite consultas "quanto resta" baratas e deixa o commit para depois
// da operação, quando o custo real é conhecido (ver Recorder).
//
// Corrida conhecida e aceita: check (count < max) e commit (Add) são duas
// operações separadas no store, então duas requisições concorrentes podem
// ambas observar remaining=1 e ambas serem admitidas. O estouro é limitado
// pelo nível de concorrência. Para aplicação estrita, use um stage atômico
// (CheckAtomic), que resolve no servidor do store.
type Counter struct {
	Store domain.WindowStore

	// Now permite injetar relógio em testes. Nil usa time.Now.
	Now func() time.Time

	// Logger recebe os avisos de fail-open. Nil usa slog.Default.
	Logger *slog.Logger

	// OnStoreFailure, se definido, é chamado a cada falha de store
	// (gancho para métricas). Nunca é chamado com err nil.
	OnStoreFailure func(key string, err error)
}

func (c Counter) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Counter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// storeFailed aplica a política de falha do limiter: fail-open devolve
// allowed=true (disponibilidade acima de quota estrita), fail-closed nega.
// Em ambos os casos a falha vira um aviso de log, nunca um erro propagado.
func (c Counter) storeFailed(key string, cfg domain.TierConfig, mode domain.FailMode, now time.Time, err error) domain.AdmissionResult {
	c.logger().Warn("window store failure",
		"key", key,
		"fail_mode", string(mode),
		"err", err,
	)
	if c.OnStoreFailure != nil {
		c.OnStoreFailure(key, err)
	}
	return domain.AdmissionResult{
		Allowed:   mode != domain.FailClosed,
		Remaining: 0,
		Limit:     cfg.MaxRequests,
		ResetAt:   now.Add(cfg.Window),
	}
}

// Check decide admissão para key sob cfg, sem mutar estado.
//
// Passos: poda entradas fora da janela, conta as restantes e compara com
// MaxRequests. Se cfg.MaxCostPerWindow > 0, também soma o custo embutido
// nas entradas e nega quando o orçamento da janela está esgotado.
func (c Counter) Check(ctx context.Context, key string, cfg domain.TierConfig, mode domain.FailMode) domain.AdmissionResult {
	now := c.now()
	lo := now.Add(-cfg.Window).UnixMilli()
	hi := now.UnixMilli()

	if err := c.Store.RemoveBelow(ctx, key, lo); err != nil {
		return c.storeFailed(key, cfg, mode, now, err)
	}

	count, err := c.Store.CountInRange(ctx, key, lo, hi)
	if err != nil {
		return c.storeFailed(key, cfg, mode, now, err)
	}

	// Remaining já desconta a requisição sendo admitida: é o que o
	// chamador ainda tem DEPOIS desta, para se auto-regular.
	allowed := count < cfg.MaxRequests
	remaining := int64(0)
	if allowed {
		remaining = cfg.MaxRequests - count - 1
	}
	res := domain.AdmissionResult{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     cfg.MaxRequests,
		ResetAt:   now.Add(cfg.Window),
	}

	if res.Allowed && cfg.MaxCostPerWindow > 0 {
		members, err := c.Store.ListInRange(ctx, key, lo, hi)
		if err != nil {
			return c.storeFailed(key, cfg, mode, now, err)
		}
		var spent int64
		for _, m := range members {
			spent += domain.MemberCost(m)
		}
		if spent >= cfg.MaxCostPerWindow {
			res.Allowed = false
			res.Remaining = 0
		}
	}
	return res
}

// CheckAtomic é a variante estrita: poda + contagem + inserção em uma única
// operação no servidor do store. Quando admite, a entrada já está gravada
// (committed=true) e o Recorder não deve inserir outra para este stage.
//
// Se o store não implementa domain.AtomicAdmitter, cai no Check otimista.
func (c Counter) CheckAtomic(ctx context.Context, key string, cfg domain.TierConfig, mode domain.FailMode) (res domain.AdmissionResult, committed bool) {
	atomic, ok := c.Store.(domain.AtomicAdmitter)
	if !ok {
		return c.Check(ctx, key, cfg, mode), false
	}

	now := c.now()
	member := domain.EncodeMember(now, 0)
	count, admitted, err := atomic.TryAdmit(ctx, key, member, now.UnixMilli(), cfg.Window, cfg.MaxRequests, cfg.Window+ttlSlack)
	if err != nil {
		return c.storeFailed(key, cfg, mode, now, err), false
	}

	remaining := cfg.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.AdmissionResult{
		Allowed:   admitted,
		Remaining: remaining,
		Limit:     cfg.MaxRequests,
		ResetAt:   now.Add(cfg.Window),
	}, admitted
}

// Commit grava uma entrada com o custo dado e renova o TTL do conjunto.
// Usado pelo Recorder após a operação protegida completar.
func (c Counter) Commit(ctx context.Context, key string, cfg domain.TierConfig, cost int64) error {
	now := c.now()
	member := domain.EncodeMember(now, cost)
	if err := c.Store.Add(ctx, key, member, now.UnixMilli()); err != nil {
		return err
	}
	return c.Store.SetExpiry(ctx, key, cfg.Window+ttlSlack)
}
