// Package domain define contratos e tipos de domínio da camada de proteção
// (admissão de requisições, rate limit, bloqueios, violações e postura).
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (Redis, Cloudflare, MaxMind).
package domain
