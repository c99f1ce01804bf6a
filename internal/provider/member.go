package provider

import (
	"fmt"
	"sort"
)

// Placement is the chain configuration every provider module embeds
// inline in its YAML config.
type Placement struct {
	// Role is primary, internal or fallback. Empty means primary.
	Role string `yaml:"role"`

	// FallbackFor limits a fallback entry to the listed roles.
	FallbackFor []string `yaml:"fallback_for"`

	Health HealthConfig `yaml:"health"`
}

// Validate checks the configured role names.
func (p Placement) Validate() error {
	if _, ok := ParseRole(p.Role); !ok {
		return fmt.Errorf("provider: unknown role %q", p.Role)
	}
	for _, r := range p.FallbackFor {
		if _, ok := ParseRole(r); !ok || r == "" {
			return fmt.Errorf("provider: unknown fallback_for role %q", r)
		}
	}
	return nil
}

// Entry builds the chain entry for prov under name.
func (p Placement) Entry(name string, prov Provider) (ChainEntry, error) {
	if err := p.Validate(); err != nil {
		return ChainEntry{}, err
	}
	role, _ := ParseRole(p.Role)
	entry := ChainEntry{Name: name, Provider: prov, Role: role, Health: p.Health}
	for _, r := range p.FallbackFor {
		fr, _ := ParseRole(r)
		entry.FallbackFor = append(entry.FallbackFor, fr)
	}
	return entry, nil
}

// Member is implemented by provider modules that can join a Chain.
type Member interface {
	Provider
	ChainEntry() (ChainEntry, error)
}

// ChainFromMembers builds a chain from provider modules, ordered by
// entry name so failover order is stable across restarts.
func ChainFromMembers(members []Member, opts ...ChainOption) (*Chain, error) {
	entries := make([]ChainEntry, 0, len(members))
	for _, m := range members {
		e, err := m.ChainEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return NewChain(entries, opts...)
}
