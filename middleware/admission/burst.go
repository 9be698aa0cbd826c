package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/infra"
)

// BurstOptions configura o pré-filtro local de rajada.
type BurstOptions struct {
	Guard        *infra.BurstGuard
	RejectStatus int
	RetryAfter   time.Duration
	// KeyFn escolhe a chave do bucket. Nil usa ClientKey (callerId quando
	// já resolvido, senão IP).
	KeyFn func(r *http.Request) string
}

// BurstMiddleware é o primeiro elo barato da cadeia: segura rajadas óbvias
// com um token bucket local, sem nenhuma ida ao store compartilhado.
func BurstMiddleware(opts BurstOptions) func(next http.Handler) http.Handler {
	if opts.Guard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.Guard.Allow(opts.KeyFn(r)) {
				now := time.Now()
				resetAt := now.Add(opts.RetryAfter)
				w.Header().Set("Retry-After", formatInt64(retryAfterSeconds(resetAt, now)))
				writeJSON(w, opts.RejectStatus, denialBody{
					Code:    "RATE_LIMIT_EXCEEDED",
					Limiter: "burst",
					ResetAt: resetAt.Unix(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
