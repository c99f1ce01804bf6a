package core

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type orderedModule struct {
	id       ModuleID
	log      *[]string
	startErr error
}

func (m *orderedModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *orderedModule) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	*m.log = append(*m.log, "start "+string(m.id))
	return nil
}

func (m *orderedModule) Stop(context.Context) error {
	*m.log = append(*m.log, "stop "+string(m.id))
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule("a.one", &orderedModule{id: "a.one", log: &log})
	app.AppendModule("a.two", &orderedModule{id: "a.two", log: &log})

	if err := app.Start(); err != nil {
		t.Fatal(err)
	}
	app.Stop()

	want := []string{"start a.one", "start a.two", "stop a.two", "stop a.one"}
	if !slices.Equal(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule("a.one", &orderedModule{id: "a.one", log: &log})
	app.AppendModule("a.two", &orderedModule{id: "a.two", log: &log, startErr: errors.New("boom")})

	if err := app.Start(); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start a.one", "stop a.one"}
	if !slices.Equal(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestApp_Module(t *testing.T) {
	app := NewApp(NewAppContext(nil, t.TempDir()))
	var log []string
	app.AppendModule("a.one", &orderedModule{id: "a.one", log: &log})

	if _, ok := app.Module("a.one"); !ok {
		t.Error("expected a.one to be found")
	}
	if _, ok := app.Module("a.two"); ok {
		t.Error("a.two should not be found")
	}
}

func TestGetModulesByNamespace(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&orderedModule{id: "store.redis", log: &log})
	RegisterModule(&orderedModule{id: "store.memory", log: &log})
	RegisterModule(&orderedModule{id: "storex.other", log: &log})

	got := GetModulesByNamespace("store")
	if len(got) != 2 || got[0].ID != "store.memory" || got[1].ID != "store.redis" {
		t.Errorf("GetModulesByNamespace(store) = %v", got)
	}
}

func TestNamespaces(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	for _, id := range []ModuleID{"store.redis", "provider.openai", "store.memory", "gateway.http"} {
		RegisterModule(&orderedModule{id: id, log: &log})
	}

	want := []string{"gateway", "provider", "store"}
	if got := Namespaces(); !slices.Equal(got, want) {
		t.Errorf("Namespaces = %v, want %v", got, want)
	}
}

func TestRegisterModule_MalformedIDPanics(t *testing.T) {
	tests := []ModuleID{"", "store", "store.", ".redis", "Store.redis", "store.re-dis"}
	for _, id := range tests {
		t.Run(string(id), func(t *testing.T) {
			t.Cleanup(resetRegistry)
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for ID %q", id)
				}
			}()
			RegisterModule(&orderedModule{id: id})
		})
	}
}

func TestRegisterModule_DuplicatePanics(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&orderedModule{id: "dup.mod", log: &log})
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterModule(&orderedModule{id: "dup.mod", log: &log})
}

type stopOnlyModule struct {
	id  ModuleID
	log *[]string
}

func (m *stopOnlyModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *stopOnlyModule) Stop(context.Context) error {
	*m.log = append(*m.log, "stop "+string(m.id))
	return nil
}

func TestApp_StopsModulesWithoutStart(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule("store.mem", &stopOnlyModule{id: "store.mem", log: &log})
	app.AppendModule("a.one", &orderedModule{id: "a.one", log: &log})

	if err := app.Start(); err != nil {
		t.Fatal(err)
	}
	app.Stop()

	want := []string{"start a.one", "stop a.one", "stop store.mem"}
	if !slices.Equal(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}
