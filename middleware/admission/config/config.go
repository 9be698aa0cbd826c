// Package config carrega o arquivo YAML de limites: a tabela estática de
// tiers, os limiters e as cadeias por rota.
//
// Toda a validação acontece aqui, no boot: tier desconhecido, limiter sem
// configuração, cadeia referenciando limiter inexistente — tudo isso é erro
// fatal de configuração e impede o serviço de subir. Depois do boot, o
// caminho da requisição só faz lookups que não podem falhar.
package config

import (
	"fmt"
	"os"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"

	"gopkg.in/yaml.v3"
)

// Duration embrulha time.Duration para aceitar "60s", "1h" etc no YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type tierLimitsYAML struct {
	Window            Duration `yaml:"window"`
	MaxRequests       int64    `yaml:"max_requests"`
	MaxCostPerRequest int64    `yaml:"max_cost_per_request"`
	MaxCostPerWindow  int64    `yaml:"max_cost_per_window"`
}

type limiterYAML struct {
	Name     string                    `yaml:"name"`
	Scope    string                    `yaml:"scope"`
	Atomic   bool                      `yaml:"atomic"`
	FailMode string                    `yaml:"fail_mode"`
	Tiers    map[string]tierLimitsYAML `yaml:"tiers"`
}

type routeYAML struct {
	Path    string   `yaml:"path"`
	Feature string   `yaml:"feature"`
	Chain   []string `yaml:"chain"`
}

type fileYAML struct {
	Prefix   string        `yaml:"prefix"`
	Limiters []limiterYAML `yaml:"limiters"`
	Routes   []routeYAML   `yaml:"routes"`
}

// Route é uma rota protegida com a sua cadeia já resolvida, na ordem
// declarada no arquivo.
type Route struct {
	Path    string
	Feature string
	Stages  []application.Stage
}

// Config é o resultado validado do arquivo de limites.
type Config struct {
	Prefix string
	Tiers  *domain.TierTable
	Routes []Route

	stages map[string]application.Stage
}

// Load lê e valida o arquivo de limites.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read limits file: %w", err)
	}
	return Parse(data)
}

// Parse valida o conteúdo YAML do arquivo de limites.
func Parse(data []byte) (*Config, error) {
	var file fileYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse limits file: %w", err)
	}

	if file.Prefix == "" {
		file.Prefix = "admission"
	}
	if len(file.Limiters) == 0 {
		return nil, fmt.Errorf("limits file: no limiters declared")
	}

	limits := make(map[string]map[domain.Tier]domain.TierConfig, len(file.Limiters))
	stages := make(map[string]application.Stage, len(file.Limiters))

	for _, lim := range file.Limiters {
		if lim.Name == "" {
			return nil, fmt.Errorf("limits file: limiter without name")
		}
		if _, dup := stages[lim.Name]; dup {
			return nil, fmt.Errorf("limits file: duplicate limiter %q", lim.Name)
		}

		scope, ok := domain.ParseScope(lim.Scope)
		if !ok {
			return nil, fmt.Errorf("limiter %q: unknown scope %q", lim.Name, lim.Scope)
		}
		failMode, ok := domain.ParseFailMode(lim.FailMode)
		if !ok {
			return nil, fmt.Errorf("limiter %q: unknown fail_mode %q", lim.Name, lim.FailMode)
		}

		byTier := make(map[domain.Tier]domain.TierConfig, len(lim.Tiers))
		for rawTier, tl := range lim.Tiers {
			tier, ok := domain.ParseTier(rawTier)
			if !ok {
				return nil, fmt.Errorf("limiter %q: unknown tier %q", lim.Name, rawTier)
			}
			byTier[tier] = domain.TierConfig{
				Window:            time.Duration(tl.Window),
				MaxRequests:       tl.MaxRequests,
				MaxCostPerRequest: tl.MaxCostPerRequest,
				MaxCostPerWindow:  tl.MaxCostPerWindow,
			}
		}
		limits[lim.Name] = byTier

		stages[lim.Name] = application.Stage{
			Name:     lim.Name,
			Scope:    scope,
			Atomic:   lim.Atomic,
			FailMode: failMode,
		}
	}

	table, err := domain.NewTierTable(limits)
	if err != nil {
		return nil, fmt.Errorf("limits file: %w", err)
	}

	cfg := &Config{
		Prefix: file.Prefix,
		Tiers:  table,
		stages: stages,
	}

	for _, rt := range file.Routes {
		if rt.Path == "" {
			return nil, fmt.Errorf("limits file: route without path")
		}
		if len(rt.Chain) == 0 {
			return nil, fmt.Errorf("route %q: empty chain", rt.Path)
		}

		route := Route{Path: rt.Path, Feature: rt.Feature}
		for _, name := range rt.Chain {
			st, ok := stages[name]
			if !ok {
				return nil, fmt.Errorf("route %q: chain references unknown limiter %q", rt.Path, name)
			}
			if (st.Scope == domain.ScopeCallerFeature || st.Scope == domain.ScopeTierFeature) && rt.Feature == "" {
				return nil, fmt.Errorf("route %q: limiter %q needs a feature", rt.Path, name)
			}
			route.Stages = append(route.Stages, st)
		}
		cfg.Routes = append(cfg.Routes, route)
	}

	return cfg, nil
}

// Scopes devolve o mapa limiter -> scope (usado pelo reset administrativo).
func (c *Config) Scopes() map[string]domain.Scope {
	out := make(map[string]domain.Scope, len(c.stages))
	for name, st := range c.stages {
		out[name] = st.Scope
	}
	return out
}

// ChainFor monta a cadeia de uma rota sobre o counter dado.
func (c *Config) ChainFor(rt Route, counter application.Counter) application.Chain {
	return application.Chain{
		Stages:    rt.Stages,
		Tiers:     c.Tiers,
		Counter:   counter,
		KeyPrefix: c.Prefix,
		Feature:   rt.Feature,
	}
}
