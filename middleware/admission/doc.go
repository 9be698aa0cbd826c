// Package admission fornece adapters HTTP (net/http) para o controle de
// admissão por tiers: o middleware de admissão, o pré-filtro de rajada, o
// limite de concorrência por chamador e os handlers administrativos.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (counter, chain, recorder) sem net/http
//   - infra: implementações concretas (Redis, memória, token bucket, pools)
//   - admission (este pacote): middlewares HTTP + extração de identidade +
//     tradução para status/headers/corpos JSON
//
// Fluxo no gateway, por requisição:
//
//  1. Resolve a identidade (callerId + tier) injetada pelo colaborador de
//     autenticação
//  2. Checa o teto de custo por requisição (lookup puro, sem ida ao store)
//  3. Roda a cadeia de limiters (janelas deslizantes no store compartilhado)
//  4. Se negado, responde 429 com o limiter esgotado e a dica de retry
//  5. Se admitido, emite os headers informativos, chama o handler de
//     negócio e escritura o custo real consumido nas janelas (Recorder)
//
// Falha do store nunca vira erro para o chamador: o limiter degrada para
// fail-open (ou fail-closed, por configuração) e o health check expõe o
// modo degradado.
package admission
