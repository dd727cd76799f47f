// Package protection fornece os adapters HTTP (net/http) da camada de
// proteção contra DDoS/abuso.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (pipeline de admissão, rate limit multi-escopo,
//     detector, geo filter, recorder, coordenador de edge) sem net/http
//   - infra: implementações concretas (Redis, memória, Cloudflare, MaxMind)
//   - protection (este pacote): middleware HTTP + extração de identidade do
//     cliente + tradução da decisão para status/headers
//   - mgmt: superfície administrativa (estatísticas, block/unblock,
//     whitelist, settings, emergência, webhook da edge)
//
// Fluxo no gateway:
//
//  1. Extrai a identidade do cliente (CF-Connecting-IP → XFF → RemoteAddr)
//  2. Monta o RequestDescriptor e chama a pipeline de admissão
//  3. Se bloqueado, responde 403 (bloqueio/geo/padrão) ou 429 (rate limit),
//     com Retry-After quando o reset é conhecido
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
package protection
