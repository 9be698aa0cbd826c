package admission

import (
	"context"
	"net/http"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/go-chi/chi/v5"
)

// AdminResetOptions configura o handler administrativo de reset de janela.
type AdminResetOptions struct {
	Store domain.WindowStore
	// Prefix e Scopes espelham a configuração das cadeias, para que a
	// chave apagada seja exatamente a que os limiters usam.
	Prefix string
	Scopes map[string]domain.Scope
}

// AdminResetHandler apaga a janela de (chamador, limiter) — fluxo de
// suporte/apelação. Rota esperada: DELETE /admin/limits/{caller}/{limiter},
// com `feature` e `tier` em query string para os scopes que precisam deles.
//
// A autenticação de operador é responsabilidade de quem monta a rota.
func AdminResetHandler(opts AdminResetOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := chi.URLParam(r, "caller")
		limiter := chi.URLParam(r, "limiter")

		scope, ok := opts.Scopes[limiter]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"code": "UNKNOWN_LIMITER"})
			return
		}

		id := domain.Identity{
			CallerID: caller,
			Tier:     domain.Tier(r.URL.Query().Get("tier")),
		}
		feature := r.URL.Query().Get("feature")
		key := domain.WindowKey(opts.Prefix, limiter, scope, id, feature)

		if err := opts.Store.Reset(r.Context(), key); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "STORE_UNAVAILABLE"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reset": key})
	}
}

// HealthHandler expõe a saúde do window store. Store fora do ar não derruba
// o serviço (o limiter degrada para fail-open); o health reporta "degraded"
// para o modo ficar visível ao operador.
func HealthHandler(store domain.WindowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusOK, map[string]string{
				"status": "degraded",
				"detail": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
