// Package application contém os casos de uso da camada de proteção: a
// pipeline de admissão, o rate limiter multi-escopo, o detector de padrões,
// o geo filter, o validador de formato, o recorder de violações com
// escalonamento e o coordenador de edge.
//
// Ele depende apenas do pacote domain e não conhece net/http.
package application
