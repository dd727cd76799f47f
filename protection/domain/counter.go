package domain

import (
	"context"
	"time"
)

// CounterResult é o retorno de um incremento/leitura de contador de janela.
type CounterResult struct {
	// Count é o total de eventos dentro da janela deslizante.
	Count int64

	// ResetAt é quando o evento mais antigo sai da janela (ou seja, quando
	// vale a pena o cliente tentar de novo).
	ResetAt time.Time
}

// CounterStore é o contador compartilhado de janela deslizante.
//
// O contrato de consistência: Increment é a operação atômica de
// "poda + adiciona + conta", nunca um read-then-write separado. Incrementos
// concorrentes na mesma chave não podem perder updates.
//
// Toda chave carrega expiração igual à janela, então chaves abandonadas se
// limpam sozinhas.
type CounterStore interface {
	// Increment registra um evento agora e retorna a contagem da janela.
	Increment(ctx context.Context, key Key, window time.Duration, now time.Time) (CounterResult, error)

	// Count retorna a contagem atual da janela sem registrar evento.
	Count(ctx context.Context, key Key, window time.Duration, now time.Time) (int64, error)
}
