package search

import "github.com/amityadav/clipping/internal/store"

// Registry holds all registered sources
type Registry struct {
	sources []Source
}

func NewRegistry() *Registry {
	return &Registry{
		sources: []Source{},
	}
}

// Register adds a source to the registry
func (r *Registry) Register(source Source) {
	r.sources = append(r.sources, source)
}

// GetAll returns all registered sources
func (r *Registry) GetAll() []Source {
	return r.sources
}

// ByClass returns the sources producing the given class.
func (r *Registry) ByClass(class store.SourceClass) []Source {
	var out []Source
	for _, s := range r.sources {
		if s.Class() == class {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of registered sources
func (r *Registry) Count() int {
	return len(r.sources)
}
