// Package capabilities defines the set of dispatchable capability
// descriptors. Descriptors are validated once at load time; the guard and
// the transport layer can then trust every entry.
package capabilities

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"keygate/internal/common"
)

// Descriptor describes one dispatchable capability: a stable name, the
// endpoint template the dispatch collaborator expands, and whether the
// capability is gated to VIP entitlements.
type Descriptor struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	VIP      bool   `json:"vip"`
}

// endpoint templates must carry every placeholder the dispatcher expands
var requiredPlaceholders = []string{"{host}", "{port}", "{time}"}

// Registry is an immutable, validated set of capability descriptors keyed by
// lower-cased name.
type Registry struct {
	byName map[string]Descriptor
}

// Load validates the given descriptors and builds a Registry. Names are
// case-insensitive and must be unique; endpoint templates must contain every
// required placeholder.
func Load(list []Descriptor) (*Registry, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no capabilities defined", common.ErrValidation)
	}

	byName := make(map[string]Descriptor, len(list))
	for _, d := range list {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: capability with empty name", common.ErrValidation)
		}
		if _, ok := byName[name]; ok {
			return nil, fmt.Errorf("%w: duplicate capability %q", common.ErrValidation, name)
		}
		for _, ph := range requiredPlaceholders {
			if !strings.Contains(d.Endpoint, ph) {
				return nil, fmt.Errorf("%w: capability %q endpoint missing %s", common.ErrValidation, name, ph)
			}
		}
		d.Name = name
		byName[name] = d
	}

	return &Registry{byName: byName}, nil
}

// LoadFile reads a JSON array of descriptors from path and validates it.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capabilities file: %w", err)
	}

	var list []Descriptor
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: parsing capabilities file: %v", common.ErrValidation, err)
	}

	return Load(list)
}

// Defaults returns the built-in descriptor set used when no capabilities
// file is configured. The endpoints are placeholders; production deployments
// are expected to supply their own file.
func Defaults() []Descriptor {
	return []Descriptor{
		{Name: "standard", Endpoint: "http://127.0.0.1:9000/dispatch?host={host}&port={port}&time={time}"},
		{Name: "premium", Endpoint: "http://127.0.0.1:9000/dispatch/premium?host={host}&port={port}&time={time}", VIP: true},
	}
}

// Get looks a capability up by name, case-insensitively.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
