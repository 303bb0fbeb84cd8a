package providers

import (
	"fmt"
	"strings"
)

// Registry is the closed set of providers enabled at startup.
// It is read-only after construction.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry; nil providers are skipped.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{}
	for _, p := range ps {
		if p != nil {
			r.providers = append(r.providers, p)
		}
	}
	return r
}

// Lookup returns the first provider matching name.
func (r *Registry) Lookup(name string) (Provider, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if r != nil && n != "" {
		for _, p := range r.providers {
			if p.Matches(n) {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Slugs lists the route slugs of the registered providers.
func (r *Registry) Slugs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.Slug())
	}
	return out
}
