package config

import (
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestResolve_LoadOrder(t *testing.T) {
	cfg := &Config{Modules: map[string]yaml.Node{
		"gateway.http":     {},
		"gateway.cli":      {},
		"provider.openai":  {},
		"provider.anthro":  {},
		"retriever.sqlite": {},
		"store.redis":      {},
		"audit.file":       {},
	}}

	plan := Resolve(cfg)

	wantBackends := []string{"store.redis", "retriever.sqlite", "provider.anthro", "provider.openai", "audit.file"}
	if !slices.Equal(plan.Backends, wantBackends) {
		t.Errorf("Backends = %v, want %v", plan.Backends, wantBackends)
	}
	wantGateways := []string{"gateway.cli", "gateway.http"}
	if !slices.Equal(plan.Gateways, wantGateways) {
		t.Errorf("Gateways = %v, want %v", plan.Gateways, wantGateways)
	}
	if got := plan.All(); !slices.Equal(got, slices.Concat(wantBackends, wantGateways)) {
		t.Errorf("All = %v", got)
	}
}

func TestResolve_Headless(t *testing.T) {
	cfg := &Config{Modules: map[string]yaml.Node{
		"store.memory":     {},
		"retriever.sqlite": {},
		"provider.openai":  {},
	}}

	plan := Resolve(cfg)
	if len(plan.Gateways) != 0 {
		t.Errorf("Gateways = %v, want none", plan.Gateways)
	}
	if len(plan.Backends) != 3 || plan.Backends[0] != "store.memory" {
		t.Errorf("Backends = %v", plan.Backends)
	}
}
