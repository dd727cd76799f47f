// Package mgmt expõe a superfície administrativa da camada de proteção:
// estatísticas, eventos recentes, block/unblock manual (local, edge ou
// ambos), whitelist, update de configuração, modo de emergência, saúde e o
// webhook do provedor de edge.
//
// Todas as respostas usam o envelope uniforme {success, data|error, message}.
package mgmt
