package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	admissioncfg "admission-gateway/middleware/admission/config"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	limits, err := admissioncfg.Load(cfg.limitsFile)
	if err != nil {
		log.Fatalf("limits error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store compartilhado. Sem REDIS_ADDR, cai no store em memória:
	// instância única, janelas não compartilhadas entre processos.
	var store domain.WindowStore
	var sink domain.UsageSink
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		redisStore := infra.NewRedisWindowStore(rdb, infra.WithCallTimeout(cfg.callTimeout))

		// Redis fora do ar no boot NÃO é fatal: os limiters degradam para
		// fail-open e o health check expõe o modo degradado.
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Printf("warning: redis unreachable, admission starts degraded: %v", err)
		}
		pingCancel()

		store = redisStore
		if cfg.usageStatsEnabled {
			sink = infra.NewRedisUsageStats(
				rdb,
				infra.WithUsagePrefix(cfg.usageStatsPrefix),
				infra.WithUsageTTL(cfg.usageStatsTTL),
				infra.WithUsageBucket(cfg.usageStatsBucket),
				infra.WithUsageTrackCallers(cfg.usageStatsTrackCallers),
			)
		}
	} else {
		log.Printf("REDIS_ADDR empty: using in-memory window store (single instance)")
		store = infra.NewMemoryWindowStore()
	}

	counter := application.Counter{Store: store}

	var metrics *infra.Metrics
	if cfg.metricsEnabled {
		metrics = infra.NewMetrics(nil)
	}

	var guard *infra.BurstGuard
	if cfg.burstEnabled {
		guard = infra.NewBurstGuard(cfg.burstRPS, cfg.burstSize)
		guard.StartJanitor(ctx)
	}

	identityMW := admission.IdentityMiddleware(func(r *http.Request) (domain.Identity, bool) {
		id, ok := cfg.apiKeys[r.Header.Get("X-Api-Key")]
		return id, ok
	})
	burstMW := admission.BurstMiddleware(admission.BurstOptions{Guard: guard})
	concurrencyMW := admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		CapForTier:     func(t domain.Tier) int { return cfg.concurrencyCaps[t] },
		AcquireTimeout: cfg.concurrencyTimeout,
	})

	r := chi.NewRouter()
	r.Get("/healthz", admission.HealthHandler(store))
	if cfg.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.adminToken != "" {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(adminAuth(cfg.adminToken))
			ar.Delete("/limits/{caller}/{limiter}", admission.AdminResetHandler(admission.AdminResetOptions{
				Store:  store,
				Prefix: limits.Prefix,
				Scopes: limits.Scopes(),
			}))
		})
	}

	for _, rt := range limits.Routes {
		chain := limits.ChainFor(rt, counter)
		if err := chain.Validate(); err != nil {
			log.Fatalf("route %s: %v", rt.Path, err)
		}

		h := http.Handler(proxy)
		h = admission.Middleware(admission.Options{
			Chain:   chain,
			Sink:    sink,
			Metrics: metrics,
		})(h)
		h = concurrencyMW(h)
		h = burstMW(h)
		h = identityMW(h)
		r.Handle(rt.Path, h)

		log.Printf("route %s: feature=%q chain=%d limiters", rt.Path, rt.Feature, len(rt.Stages))
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("store: redis=%q callTimeout=%s", cfg.redisAddr, cfg.callTimeout)
	log.Printf("burst: enabled=%v rps=%.3f size=%d", cfg.burstEnabled, cfg.burstRPS, cfg.burstSize)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// adminAuth exige o token de operador no header X-Admin-Token.
func adminAuth(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Admin-Token") != token {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
