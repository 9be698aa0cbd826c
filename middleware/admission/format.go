// utilitários pequenos para formatação rápida/consistente de valores em
// headers e corpos JSON de negação.

package admission

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// epochSeconds formata um instante como epoch-seconds (padrão dos headers
// X-RateLimit-Reset).
func epochSeconds(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// retryAfterSeconds calcula o valor de Retry-After, nunca menor que 1.
func retryAfterSeconds(resetAt, now time.Time) int64 {
	secs := int64(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
