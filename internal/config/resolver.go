package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/policychat/internal/core"
)

// GroupGateway is the namespace of modules that accept user turns.
const GroupGateway = "gateway"

// loadRank orders module groups for loading. The store comes first since
// the retriever and the session manager depend on it; gateways come last so
// they stop first and drain in-flight turns while the backends are up.
var loadRank = map[string]int{
	GroupStore:     0,
	GroupRetriever: 1,
	GroupProvider:  2,
	GroupGateway:   4,
}

// rankOther places groups without a fixed rank between providers and
// gateways.
const rankOther = 3

// LoadPlan is the order in which configured modules are loaded.
type LoadPlan struct {
	// Backends are every non-gateway module, loaded before the assistant
	// is wired.
	Backends []string
	// Gateways are loaded once the assistant exists.
	Gateways []string
}

// All returns every module ID of the plan in load order.
func (p LoadPlan) All() []string {
	return slices.Concat(p.Backends, p.Gateways)
}

// Resolve returns the configured module IDs in load order: store,
// retriever, providers, other groups, then gateways. IDs sort by name
// within a group.
func Resolve(cfg *Config) LoadPlan {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(rankOf(a), rankOf(b)), cmp.Compare(a, b))
	})

	var plan LoadPlan
	for _, id := range ids {
		if core.ModuleID(id).Namespace() == GroupGateway {
			plan.Gateways = append(plan.Gateways, id)
		} else {
			plan.Backends = append(plan.Backends, id)
		}
	}
	return plan
}

func rankOf(id string) int {
	if r, ok := loadRank[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return rankOther
}
