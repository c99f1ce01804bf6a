package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	modules   = make(map[string]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule adds a module to the global registry. IDs take the form
// "<group>.<name>" with lowercase letters, digits and underscores in each
// part. It panics on a malformed ID, a nil constructor or a duplicate ID;
// call it from init().
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if err := checkID(info.ID); err != nil {
		panic(err.Error())
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	id := string(info.ID)
	if _, exists := modules[id]; exists {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	modules[id] = info
}

func checkID(id ModuleID) error {
	ns, name := id.Namespace(), id.Name()
	if ns == "" || name == "" {
		return fmt.Errorf("module ID %q: want <group>.<name>", id)
	}
	for _, r := range string(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return fmt.Errorf("module ID %q: invalid character %q", id, r)
		}
	}
	return nil
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[id]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace returns the modules of one group, sorted by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(info ModuleInfo) bool { return info.ID.Namespace() == namespace })
}

// Namespaces returns the sorted groups that have at least one module.
func Namespaces() []string {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var out []string
	for _, info := range modules {
		out = append(out, info.ID.Namespace())
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func collect(keep func(ModuleInfo) bool) []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var result []ModuleInfo
	for _, info := range modules {
		if keep(info) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[string]ModuleInfo)
}
