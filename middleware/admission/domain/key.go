package domain

import "strings"

// Scope define como a chave de janela de um limiter é composta.
type Scope string

const (
	// ScopeCaller agrega por chamador (limite global por cliente).
	ScopeCaller Scope = "caller"
	// ScopeCallerFeature agrega por chamador + feature (ex: "banner").
	ScopeCallerFeature Scope = "caller_feature"
	// ScopeTierFeature agrega por tier + feature (capacidade compartilhada
	// por todos os chamadores de um tier em uma feature).
	ScopeTierFeature Scope = "tier_feature"
)

// ParseScope normaliza uma string de configuração para um Scope conhecido.
func ParseScope(s string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeCaller:
		return ScopeCaller, true
	case ScopeCallerFeature:
		return ScopeCallerFeature, true
	case ScopeTierFeature:
		return ScopeTierFeature, true
	}
	return "", false
}

// WindowKey monta a chave determinística de uma janela lógica.
//
// Formato: prefix:limiter:<partes do escopo>. A mesma tupla de entrada
// sempre produz a mesma chave, em qualquer instância do serviço — é isso
// que faz as janelas serem compartilhadas via store.
func WindowKey(prefix, limiter string, scope Scope, id Identity, feature string) string {
	parts := []string{prefix, limiter}
	switch scope {
	case ScopeCallerFeature:
		parts = append(parts, id.CallerID, feature)
	case ScopeTierFeature:
		parts = append(parts, string(id.Tier.Normalize()), feature)
	default:
		parts = append(parts, id.CallerID)
	}
	return strings.Join(parts, ":")
}
