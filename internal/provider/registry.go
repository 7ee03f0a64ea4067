package provider

import (
	"fmt"
	"strings"
)

// Registry maps a platform tag to its gateway. Dispatch happens here so call
// sites never branch on platform strings.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds a gateway under the given platform tag.
func (r *Registry) Register(platform string, gw Gateway) {
	r.gateways[strings.ToLower(platform)] = gw
}

// Get returns the gateway for a platform tag.
func (r *Registry) Get(platform string) (Gateway, error) {
	gw, ok := r.gateways[strings.ToLower(platform)]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	return gw, nil
}

// Platforms lists the registered platform tags.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	return out
}
