package application

import (
	"context"

	"admission-gateway/middleware/admission/domain"
)

// Usage é o que foi medido durante a operação protegida.
type Usage struct {
	// Cost é o consumo real (ex: tokens usados pelo provedor).
	Cost int64
	// Failed indica falha downstream (ex: erro do provedor upstream).
	Failed bool
}

// Recorder escritura o custo real nas janelas que participaram da admissão,
// depois que a operação completou.
//
// Assimetria deliberada (e que deve ser preservada): operação que falhou
// downstream ainda consome 1 unidade de contagem de requisições — senão
// tempestade de retry furaria o limite — mas contribui custo zero, para não
// penalizar o chamador por falha do provedor. Operação bem-sucedida nunca é
// "de graça": custo mínimo 1.
type Recorder struct {
	Counter Counter

	// Sink recebe o evento de uso para estatísticas (best-effort; nil
	// desliga).
	Sink domain.UsageSink
}

// clampCost aplica a assimetria e o saneamento de invariante: custo
// negativo é violação — vira aviso de log e é tratado como zero.
func (r Recorder) clampCost(u Usage) int64 {
	cost := u.Cost
	if cost < 0 {
		r.Counter.logger().Warn("negative usage cost clamped", "cost", cost)
		cost = 0
	}
	if u.Failed {
		return 0
	}
	if cost < 1 {
		cost = 1
	}
	return cost
}

// Record grava uma entrada por limiter participante, com o custo medido, e
// devolve o custo efetivamente escriturado (após clamp/assimetria).
//
// Falha de store aqui é best-effort: vira aviso de log (via gancho do
// Counter) e a resposta ao chamador não é afetada.
func (r Recorder) Record(ctx context.Context, id domain.Identity, feature string, commits []PendingCommit, u Usage) int64 {
	cost := r.clampCost(u)

	for _, pc := range commits {
		if pc.Committed {
			// Stage atômico já contou a requisição na admissão.
			continue
		}
		if err := r.Counter.Commit(ctx, pc.Key, pc.Config, cost); err != nil {
			r.Counter.logger().Warn("usage commit failed",
				"key", pc.Key,
				"limiter", pc.Stage,
				"err", err,
			)
			if r.Counter.OnStoreFailure != nil {
				r.Counter.OnStoreFailure(pc.Key, err)
			}
		}
	}

	if r.Sink != nil {
		_ = r.Sink.Record(ctx, domain.UsageEvent{
			CallerID: id.CallerID,
			Tier:     id.Tier,
			Feature:  feature,
			Allowed:  true,
			Cost:     cost,
			At:       r.Counter.now(),
		})
	}
	return cost
}
