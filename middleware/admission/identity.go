package admission

import (
	"context"
	"net"
	"net/http"
	"strings"

	"admission-gateway/middleware/admission/domain"
)

type identityCtxKey struct{}

// WithIdentity injeta a identidade resolvida no contexto da requisição.
// É o contrato com o colaborador de autenticação: o middleware de admissão
// só consome identidade já resolvida.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFrom extrai a identidade do contexto.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(domain.Identity)
	return id, ok
}

// IdentityFunc resolve a identidade a partir da requisição (ex: lookup de
// API key). Retorna ok=false quando a credencial é desconhecida.
type IdentityFunc func(r *http.Request) (domain.Identity, bool)

// IdentityMiddleware resolve e injeta a identidade antes do middleware de
// admissão. Credencial desconhecida responde 401 estruturado.
func IdentityMiddleware(resolve IdentityFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := resolve(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "UNAUTHENTICATED"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// ClientKey devolve a melhor chave disponível para limiters locais (pré-
// filtro de rajada): o callerId quando a identidade já foi resolvida, senão
// o IP do cliente.
func ClientKey(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok && id.CallerID != "" {
		return id.CallerID
	}
	return clientIP(r, true)
}

// clientIP extrai o IP do cliente, opcionalmente confiando no primeiro IP
// do X-Forwarded-For (cliente original atrás de proxy).
func clientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				ip := strings.TrimSpace(parts[0])
				if ip != "" {
					return ip
				}
			}
		}
	}

	// fallback: RemoteAddr
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
