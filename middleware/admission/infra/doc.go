// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisWindowStore: sorted sets + TTL no Redis, com script Lua para a
//     admissão atômica opcional
//   - MemoryWindowStore: janelas em memória para testes e instância única
//   - BurstGuard: token bucket local por chave usando golang.org/x/time/rate
//   - KeyedSlotPools: semáforos por chamador para limite de concorrência
//   - RedisUsageStats / MemoryUsageStats: contabilização de uso
package infra
