package domain

// RegionResolver resolve um endereço de cliente para a jurisdição (código
// ISO 3166-1 alpha-2). Colaborador externo plugável; falha de resolução é
// tratada como fail-open pelo geo filter.
type RegionResolver interface {
	Resolve(ip string) (string, error)
}

// RegionResolverFunc adapta uma função para RegionResolver.
type RegionResolverFunc func(ip string) (string, error)

func (f RegionResolverFunc) Resolve(ip string) (string, error) { return f(ip) }
