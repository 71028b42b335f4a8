package tree

// Source is a compiled tree asset that can be instantiated any number of times.
type Source interface {
	ID() string
	// Instantiate builds an independent graph executed on behalf of host.
	// host is nil for top-level instances.
	Instantiate(host *Graph) (*Graph, error)
}

// SourceValidator is implemented by sources able to report build problems,
// such as node kinds missing from the registry, before instancing.
type SourceValidator interface {
	Validate() error
}

// WatchableSource is implemented by sources whose content can be replaced at runtime.
type WatchableSource interface {
	OnChanged(fn func()) (cancel func())
}

// SourceFunc adapts a build function to Source.
type SourceFunc struct {
	Name  string
	Build func(host *Graph) (*Graph, error)
}

func (s SourceFunc) ID() string { return s.Name }

func (s SourceFunc) Instantiate(host *Graph) (*Graph, error) {
	return s.Build(host)
}

// Executes reports whether sourceID is being executed by g or any of its hosts.
func (g *Graph) Executes(sourceID string) bool {
	for cur := g; cur != nil; cur = cur.host {
		if cur.sourceID == sourceID {
			return true
		}
	}
	return false
}
