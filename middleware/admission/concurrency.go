package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

// ConcurrencyOptions configura o limite de gerações simultâneas por
// chamador, com capacidade por tier.
type ConcurrencyOptions struct {
	// CapForTier devolve a capacidade do tier (<= 0 desliga para o tier).
	// Nil desliga o middleware.
	CapForTier     func(domain.Tier) int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita quantas operações de um mesmo chamador podem
// estar em andamento ao mesmo tempo. Requisições sem identidade resolvida
// passam direto (o middleware de admissão responde por elas).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.CapForTier == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pools:          infra.NewKeyedSlotPools(),
		CapForTier:     opts.CapForTier,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			release, acquired := svc.Acquire(r.Context(), id)
			if !acquired {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
