// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisCounterStore / MemoryCounterStore: janela deslizante por chave
//   - RedisBlockRegistry / MemoryBlockRegistry: bloqueios e whitelist
//   - CloudflareEdge: adapter do provedor de edge
//   - MaxMindResolver: resolução IP → jurisdição
package infra
