package application

import (
	"context"

	"admission-gateway/middleware/admission/domain"
)

// Stage é um limiter configurado dentro de uma cadeia.
//
// A ordem dos stages importa para custo: limiters baratos e largos (por
// chamador) vêm antes dos caros e estreitos (por chamador+feature), para que
// abuso comum seja rejeitado com o mínimo de idas ao store.
type Stage struct {
	Name  string
	Scope domain.Scope
	// Atomic liga a admissão estrita (script no servidor do store) para
	// este stage; o padrão é o caminho otimista de duas chamadas.
	Atomic bool
	// FailMode decide fail-open/fail-closed quando o store falha.
	FailMode domain.FailMode
}

// PendingCommit é um commit devido após a admissão: a janela que deve
// receber a entrada com o custo real, quando a operação completar.
type PendingCommit struct {
	Stage  string
	Key    string
	Config domain.TierConfig
	// Committed indica que o stage atômico já gravou a entrada na
	// admissão; o Recorder não deve inserir outra.
	Committed bool
}

// Verdict é a decisão agregada da cadeia.
type Verdict struct {
	Allowed bool

	// DeniedBy identifica o limiter que negou (vazio quando Allowed).
	DeniedBy     string
	Denied       domain.AdmissionResult
	DeniedWindow domain.TierConfig

	// Tightest é o resultado do limiter mais apertado consultado (menor
	// remaining) — é o que vai nos headers informativos.
	Tightest      domain.AdmissionResult
	TightestStage string

	// Commits lista as janelas a escriturar pós-admissão.
	Commits []PendingCommit
}

// Chain compõe uma lista ordenada de limiters independentes em uma única
// decisão de admissão, com curto-circuito na primeira negação.
type Chain struct {
	Stages  []Stage
	Tiers   *domain.TierTable
	Counter Counter

	// KeyPrefix prefixa todas as chaves de janela desta cadeia.
	KeyPrefix string
	// Feature identifica a operação protegida (ex: "banner") para os
	// scopes com feature.
	Feature string
}

// Validate confere no boot que todo stage existe na tabela de tiers.
// Falha aqui é erro de configuração e deve impedir o serviço de subir.
func (ch Chain) Validate() error {
	for _, st := range ch.Stages {
		if _, err := ch.Tiers.Resolve(st.Name, domain.TierFree); err != nil {
			return err
		}
	}
	return nil
}

// CostCeiling devolve o menor MaxCostPerRequest não-zero entre os stages
// da cadeia para este chamador. Zero significa sem teto. Lookup puro, sem
// ida ao store — é checado antes de qualquer round-trip.
func (ch Chain) CostCeiling(id domain.Identity) int64 {
	var ceiling int64
	for _, st := range ch.Stages {
		cfg, err := ch.Tiers.Resolve(st.Name, id.Tier)
		if err != nil || cfg.MaxCostPerRequest == 0 {
			continue
		}
		if ceiling == 0 || cfg.MaxCostPerRequest < ceiling {
			ceiling = cfg.MaxCostPerRequest
		}
	}
	return ceiling
}

// Evaluate roda os stages em ordem contra o Counter, parando na primeira
// negação. Na admissão, devolve as janelas que devem ser escrituradas
// (commits) e o resultado mais apertado para os headers.
func (ch Chain) Evaluate(ctx context.Context, id domain.Identity) Verdict {
	v := Verdict{Allowed: true}

	for _, st := range ch.Stages {
		cfg, err := ch.Tiers.Resolve(st.Name, id.Tier)
		if err != nil {
			// Cadeia validada no boot; stage desconhecido aqui é bug de
			// wiring. Não negamos o chamador por isso.
			ch.Counter.logger().Error("limiter missing from tier table", "limiter", st.Name, "err", err)
			continue
		}

		key := domain.WindowKey(ch.KeyPrefix, st.Name, st.Scope, id, ch.Feature)

		var (
			res       domain.AdmissionResult
			committed bool
		)
		if st.Atomic {
			res, committed = ch.Counter.CheckAtomic(ctx, key, cfg, st.FailMode)
		} else {
			res = ch.Counter.Check(ctx, key, cfg, st.FailMode)
		}

		if !res.Allowed {
			return Verdict{
				Allowed:       false,
				DeniedBy:      st.Name,
				Denied:        res,
				DeniedWindow:  cfg,
				Tightest:      res,
				TightestStage: st.Name,
			}
		}

		if v.TightestStage == "" || res.Remaining < v.Tightest.Remaining {
			v.Tightest = res
			v.TightestStage = st.Name
		}
		v.Commits = append(v.Commits, PendingCommit{
			Stage:     st.Name,
			Key:       key,
			Config:    cfg,
			Committed: committed,
		})
	}
	return v
}
