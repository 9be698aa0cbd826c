package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"
)

type config struct {
	listenAddr  string
	upstreamURL string
	limitsFile  string

	redisAddr     string
	redisPassword string
	redisDB       int
	callTimeout   time.Duration

	burstEnabled bool
	burstRPS     float64
	burstSize    int

	concurrencyCaps    map[domain.Tier]int
	concurrencyTimeout time.Duration

	usageStatsEnabled      bool
	usageStatsPrefix       string
	usageStatsTTL          time.Duration
	usageStatsBucket       string
	usageStatsTrackCallers bool

	metricsEnabled bool

	adminToken string

	// apiKeys mapeia credencial -> identidade (demo de colaborador de
	// autenticação; produção usa o serviço de auth de verdade).
	apiKeys map[string]domain.Identity
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.limitsFile = getenvDefault("LIMITS_FILE", "limits.yaml")

	// REDIS_ADDR vazio liga o store em memória (instância única, sem
	// janelas compartilhadas entre processos).
	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.callTimeout = getenvDurationDefault("STORE_CALL_TIMEOUT", 500*time.Millisecond)

	cfg.burstEnabled = getenvBoolDefault("BURST_ENABLED", true)
	cfg.burstRPS = getenvFloatDefault("BURST_RPS", 20)
	cfg.burstSize = getenvIntDefault("BURST_SIZE", 40)

	caps, err := parseConcurrencyCaps(getenvDefault("CONCURRENCY_CAPS", "FREE=1,BASIC=2,PRO=4,ENTERPRISE=8"))
	if err != nil {
		return config{}, err
	}
	cfg.concurrencyCaps = caps
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.usageStatsEnabled = getenvBoolDefault("USAGE_STATS_ENABLED", false)
	cfg.usageStatsPrefix = getenvDefault("USAGE_STATS_PREFIX", "admission:usage")
	cfg.usageStatsTTL = getenvDurationDefault("USAGE_STATS_TTL", 24*time.Hour)
	cfg.usageStatsBucket = getenvDefault("USAGE_STATS_BUCKET", "minute")
	cfg.usageStatsTrackCallers = getenvBoolDefault("USAGE_STATS_TRACK_CALLERS", false)

	cfg.metricsEnabled = getenvBoolDefault("METRICS_ENABLED", true)
	cfg.adminToken = os.Getenv("ADMIN_TOKEN")

	keys, err := parseAPIKeys(os.Getenv("API_KEYS"))
	if err != nil {
		return config{}, err
	}
	cfg.apiKeys = keys

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.usageStatsEnabled && cfg.redisAddr == "" {
		return config{}, errors.New("USAGE_STATS_ENABLED=true requires REDIS_ADDR")
	}
	if cfg.burstEnabled && (cfg.burstRPS <= 0 || cfg.burstSize <= 0) {
		return config{}, errors.New("BURST_RPS and BURST_SIZE must be > 0")
	}
	if len(cfg.apiKeys) == 0 {
		return config{}, errors.New("API_KEYS is required (format: key:caller:TIER,...)")
	}
	return cfg, nil
}

// parseAPIKeys aceita "chave:caller:TIER" separados por vírgula.
func parseAPIKeys(raw string) (map[string]domain.Identity, error) {
	out := make(map[string]domain.Identity)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("API_KEYS: invalid entry %q", entry)
		}
		tier, ok := domain.ParseTier(parts[2])
		if !ok {
			return nil, fmt.Errorf("API_KEYS: unknown tier %q in %q", parts[2], entry)
		}
		out[parts[0]] = domain.Identity{CallerID: parts[1], Tier: tier}
	}
	return out, nil
}

// parseConcurrencyCaps aceita "TIER=n" separados por vírgula.
func parseConcurrencyCaps(raw string) (map[domain.Tier]int, error) {
	out := make(map[domain.Tier]int)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("CONCURRENCY_CAPS: invalid entry %q", entry)
		}
		tier, ok := domain.ParseTier(name)
		if !ok {
			return nil, fmt.Errorf("CONCURRENCY_CAPS: unknown tier %q", name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("CONCURRENCY_CAPS: invalid capacity in %q", entry)
		}
		out[tier] = n
	}
	return out, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
