package application

import (
	"strings"

	"protection-gateway/protection/domain"
)

// Assinaturas de ferramentas de scan/exploit em user-agents. Comparação
// sempre em minúsculas.
var badAgentSignatures = []string{
	"sqlmap",
	"nikto",
	"nessus",
	"masscan",
	"zgrab",
	"hydra",
	"metasploit",
	"havij",
	"acunetix",
	"w3af",
	"dirbuster",
	"gobuster",
	"wpscan",
}

// Sequências suspeitas em paths: traversal, alvos clássicos de varredura e
// extensões que este serviço nunca serve.
var badPathFragments = []string{
	"../",
	"..%2f",
	"..%5c",
	"/etc/passwd",
	"/wp-admin",
	"/wp-login",
	"/.git",
	"/.env",
	"/phpmyadmin",
}

var badPathExtensions = []string{".php", ".asp", ".aspx", ".jsp", ".cgi"}

var allowedMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

// Score é o resultado do detector: qualquer indicador derruba Safe; todos
// os indicadores disparados voltam para diagnóstico/log.
type Score struct {
	Safe       bool
	Indicators []string
}

// Detector é o scorer heurístico por requisição. Puro, determinístico e sem
// I/O nenhum; existe para manter o hot path rápido e testável isolado.
type Detector struct {
	// MaxQueryLength e MaxProxyHops vêm do Shape vigente; zero usa o default.
	MaxQueryLength int
	MaxProxyHops   int
}

// Inspect avalia os sinais da requisição e retorna o score.
func (d Detector) Inspect(desc domain.RequestDescriptor) Score {
	maxQuery := d.MaxQueryLength
	if maxQuery <= 0 {
		maxQuery = 2048
	}
	maxHops := d.MaxProxyHops
	if maxHops <= 0 {
		maxHops = 5
	}

	var indicators []string

	ua := strings.ToLower(strings.TrimSpace(desc.UserAgent))
	if ua == "" {
		indicators = append(indicators, "empty_user_agent")
	}
	for _, sig := range badAgentSignatures {
		if strings.Contains(ua, sig) {
			indicators = append(indicators, "scanner_user_agent:"+sig)
			break
		}
	}

	path := strings.ToLower(desc.Path)
	for _, frag := range badPathFragments {
		if strings.Contains(path, frag) {
			indicators = append(indicators, "suspicious_path:"+frag)
			break
		}
	}
	for _, ext := range badPathExtensions {
		if strings.HasSuffix(path, ext) {
			indicators = append(indicators, "suspicious_extension:"+ext)
			break
		}
	}

	if len(desc.RawQuery) > maxQuery {
		indicators = append(indicators, "oversized_query")
	}
	if desc.ForwardedHops > maxHops {
		indicators = append(indicators, "excessive_proxy_hops")
	}
	if !allowedMethods[desc.Method] {
		indicators = append(indicators, "disallowed_method:"+desc.Method)
	}
	// browsers e SDKs legítimos mandam Accept; requisições "nuas" são
	// tipicamente floods de ferramenta
	if _, ok := desc.Headers["Accept"]; !ok && desc.HeaderCount() < 2 {
		indicators = append(indicators, "sparse_headers")
	}

	return Score{Safe: len(indicators) == 0, Indicators: indicators}
}
