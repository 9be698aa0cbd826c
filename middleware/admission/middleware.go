package admission

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

// Options configura o middleware de admissão de uma rota protegida.
type Options struct {
	// Chain é a cadeia de limiters da rota (validada no boot).
	Chain application.Chain

	// Sink recebe os eventos de uso/negação (best-effort; nil desliga).
	Sink domain.UsageSink

	// Metrics liga os contadores Prometheus (nil desliga).
	Metrics *infra.Metrics

	Logger *slog.Logger

	// CostEstimator estima o custo da requisição ANTES da operação, para o
	// teto por requisição (MaxCostPerRequest). Estimativa zero pula o teto.
	CostEstimator func(r *http.Request) int64

	// CostFromResponse mede o custo real a partir da resposta do handler
	// (ex: header X-Tokens-Used emitido pelo upstream).
	CostFromResponse func(status int, hdr http.Header) int64
}

// DefaultCostEstimator lê a estimativa do header X-Max-Tokens.
func DefaultCostEstimator(r *http.Request) int64 {
	v, err := strconv.ParseInt(r.Header.Get("X-Max-Tokens"), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// DefaultCostFromResponse lê o custo medido do header X-Tokens-Used.
func DefaultCostFromResponse(_ int, hdr http.Header) int64 {
	v, err := strconv.ParseInt(hdr.Get("X-Tokens-Used"), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

type denialBody struct {
	Code    string `json:"code"`
	Limiter string `json:"limiter"`
	Limit   int64  `json:"limit"`
	Window  string `json:"window_duration"`
	ResetAt int64  `json:"reset_at"`
}

type costDenialBody struct {
	Code      string `json:"code"`
	Limit     int64  `json:"limit"`
	Estimated int64  `json:"estimated"`
}

func setRateHeaders(w http.ResponseWriter, res domain.AdmissionResult) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", formatInt64(res.Limit))
	h.Set("X-RateLimit-Remaining", formatInt64(res.Remaining))
	h.Set("X-RateLimit-Reset", epochSeconds(res.ResetAt))
}

// statusRecorder captura o status escrito pelo handler para que o custo e a
// assimetria sucesso/falha possam ser medidos depois.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware monta o middleware de admissão para uma rota.
//
// Máquina de estados por requisição: resolve identidade → teto de custo →
// cadeia de limiters → (admitido) handler → escrituração do custo real →
// resposta; ou (negado) resposta 429 com a dica de retry. Não há loop de
// retry aqui dentro — retry é responsabilidade do chamador.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CostEstimator == nil {
		opts.CostEstimator = DefaultCostEstimator
	}
	if opts.CostFromResponse == nil {
		opts.CostFromResponse = DefaultCostFromResponse
	}
	if opts.Chain.Counter.Logger == nil {
		opts.Chain.Counter.Logger = opts.Logger
	}
	if opts.Metrics != nil && opts.Chain.Counter.OnStoreFailure == nil {
		metrics := opts.Metrics
		opts.Chain.Counter.OnStoreFailure = func(string, error) {
			metrics.StoreFailures.Inc()
		}
	}

	recorder := application.Recorder{
		Counter: opts.Chain.Counter,
		Sink:    opts.Sink,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				// Ausência de identidade é erro de wiring (o middleware
				// de autenticação vem antes), não um caminho de negação.
				opts.Logger.Error("identity missing from request context",
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "ADMISSION_MISCONFIGURED"})
				return
			}

			// Teto de custo por requisição: lookup puro, sem ida ao store,
			// antes de qualquer round-trip.
			if est := opts.CostEstimator(r); est > 0 {
				if ceiling := opts.Chain.CostCeiling(id); ceiling > 0 && est > ceiling {
					if opts.Metrics != nil {
						opts.Metrics.Admissions.WithLabelValues("max_cost_per_request", "denied").Inc()
					}
					writeJSON(w, http.StatusRequestEntityTooLarge, costDenialBody{
						Code:      "COST_LIMIT_EXCEEDED",
						Limit:     ceiling,
						Estimated: est,
					})
					return
				}
			}

			v := opts.Chain.Evaluate(r.Context(), id)
			if !v.Allowed {
				if opts.Metrics != nil {
					opts.Metrics.Admissions.WithLabelValues(v.DeniedBy, "denied").Inc()
				}
				if opts.Sink != nil {
					_ = opts.Sink.Record(r.Context(), domain.UsageEvent{
						CallerID: id.CallerID,
						Tier:     id.Tier,
						Feature:  opts.Chain.Feature,
						Allowed:  false,
						At:       time.Now(),
					})
				}

				setRateHeaders(w, v.Denied)
				w.Header().Set("Retry-After", formatInt64(retryAfterSeconds(v.Denied.ResetAt, time.Now())))
				writeJSON(w, http.StatusTooManyRequests, denialBody{
					Code:    "RATE_LIMIT_EXCEEDED",
					Limiter: v.DeniedBy,
					Limit:   v.Denied.Limit,
					Window:  v.DeniedWindow.Window.String(),
					ResetAt: v.Denied.ResetAt.Unix(),
				})
				return
			}

			// Headers informativos do limiter mais apertado, para o
			// chamador se auto-regular.
			setRateHeaders(w, v.Tightest)

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			// Escrituração do custo real. Desanexa do cancelamento do
			// cliente: desconexão não pode zerar a contabilização.
			cost := opts.CostFromResponse(sr.status, w.Header())
			failed := sr.status >= http.StatusInternalServerError
			recorded := recorder.Record(context.WithoutCancel(r.Context()), id, opts.Chain.Feature, v.Commits, application.Usage{
				Cost:   cost,
				Failed: failed,
			})

			if opts.Metrics != nil {
				opts.Metrics.Admissions.WithLabelValues(v.TightestStage, "allowed").Inc()
				if recorded > 0 {
					opts.Metrics.CostUnits.WithLabelValues(opts.Chain.Feature).Add(float64(recorded))
				}
			}
		})
	}
}
