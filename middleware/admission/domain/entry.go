package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EncodeMember monta a identidade única de uma entrada de janela.
//
// Formato: <millis>-<uuid>@<custo>. O timestamp + sufixo aleatório garantem
// que duas requisições do mesmo instante nunca colidam no set; o custo vai
// embutido no membro para que a soma de custo da janela possa ser
// reconstruída a partir de ListInRange.
func EncodeMember(at time.Time, cost int64) string {
	if cost < 0 {
		cost = 0
	}
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + uuid.NewString() + "@" + strconv.FormatInt(cost, 10)
}

// MemberCost extrai o custo embutido em um membro. Membros em formato
// inesperado contam como custo zero (nunca derruba a requisição).
func MemberCost(member string) int64 {
	i := strings.LastIndexByte(member, '@')
	if i < 0 {
		return 0
	}
	cost, err := strconv.ParseInt(member[i+1:], 10, 64)
	if err != nil || cost < 0 {
		return 0
	}
	return cost
}
