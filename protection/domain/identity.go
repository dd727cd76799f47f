package domain

// Key identifica um cliente nos stores (ex: IP, usuário, rota composta).
type Key string

// ClientIdentity é a identidade derivada de uma requisição.
//
// IP é obrigatório (primeiro valor confiável da cadeia de proxy ou o peer
// direto). UserID e Route são opcionais e refinam os escopos de limite.
type ClientIdentity struct {
	IP     string
	UserID string
	Route  string
}

// RequestDescriptor é a visão agnóstica de HTTP de uma requisição inbound.
//
// Os campos são preenchidos pelo adapter HTTP; aqui só importam os sinais
// usados pelas heurísticas e pela validação de formato.
type RequestDescriptor struct {
	Identity ClientIdentity

	Method    string
	Path      string
	RawQuery  string
	UserAgent string
	Referer   string
	Host      string

	// Headers guarda o primeiro valor de cada header (suficiente para as
	// heurísticas; cuidado com cardinalidade se isso um dia virar métrica).
	Headers map[string]string

	// ForwardedHops é o número de saltos declarados em X-Forwarded-For.
	ForwardedHops int

	ContentLength int64
}

// HeaderCount retorna o número de headers distintos da requisição.
func (d RequestDescriptor) HeaderCount() int { return len(d.Headers) }

// URILength retorna o tamanho de path + query string.
func (d RequestDescriptor) URILength() int {
	n := len(d.Path)
	if d.RawQuery != "" {
		n += 1 + len(d.RawQuery)
	}
	return n
}
