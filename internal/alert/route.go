package alert

// KindFilter lets a sink opt out of event kinds. The emitter checks it
// before delivery; sinks without it receive everything.
type KindFilter interface {
	Accepts(Kind) bool
}

type kindRouter struct {
	Sink
	allowed map[Kind]struct{}
}

// RouteKinds restricts a sink to the listed event kinds. An operator can
// point a chat webhook at safe-mode activations only while the file log
// keeps the full stream.
func RouteKinds(s Sink, kinds ...Kind) Sink {
	if len(kinds) == 0 {
		return s
	}
	allowed := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return &kindRouter{Sink: s, allowed: allowed}
}

func (r *kindRouter) Accepts(k Kind) bool {
	_, ok := r.allowed[k]
	return ok
}
