package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/flemzord/policychat/internal/config"
	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"gopkg.in/yaml.v3"

	_ "github.com/flemzord/policychat/internal/gateway"
	_ "github.com/flemzord/policychat/modules/provider/openai"
	_ "github.com/flemzord/policychat/modules/retriever/sqlite"
	_ "github.com/flemzord/policychat/modules/store/memory"
)

// stopCounter is a backend module that records how often it was stopped.
type stopCounter struct{}

var counterStops atomic.Int64

func (stopCounter) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "test.stopcounter", New: func() core.Module { return stopCounter{} }}
}

func (stopCounter) Stop(context.Context) error {
	counterStops.Add(1)
	return nil
}

// brokenGateway fails to provision.
type brokenGateway struct{}

func (brokenGateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "gateway.broken", New: func() core.Module { return brokenGateway{} }}
}

func (brokenGateway) Provision(*core.AppContext) error {
	return errors.New("bind failed")
}

func init() {
	core.RegisterModule(stopCounter{})
	core.RegisterModule(brokenGateway{})
}

const testAPIKey = "sk-test-0123456789abcdef"

const validConfig = `version: "1"
log_level: debug
secrets:
  - hunter2-secret
assistant:
  session_ttl: 30m
  persona: the Example Corp privacy assistant
modules:
  store.memory: {}
  retriever.sqlite: {}
  provider.openai:
    api_key: ` + testAPIKey + `
  gateway.http:
    bind: "127.0.0.1:0"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policychat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func openTest(t *testing.T, opts Options) (*Runtime, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	if opts.ConfigPath == "" {
		opts.ConfigPath = writeConfig(t, validConfig)
	}
	opts.DataDir = t.TempDir()
	opts.LogOutput = &logs
	rt, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return rt, &logs
}

func TestOpen_WiresAssistant(t *testing.T) {
	rt, _ := openTest(t, Options{})
	t.Cleanup(rt.Close)

	if rt.Router == nil || rt.Store == nil || rt.Retriever == nil || rt.Chain == nil {
		t.Fatalf("runtime not wired: %+v", rt)
	}
	if got, ok := core.Service[*router.Router](rt.AppCtx, router.ServiceName); !ok || got != rt.Router {
		t.Error("router service not registered")
	}
	if _, ok := core.Service[*health.Checker](rt.AppCtx, health.ServiceName); !ok {
		t.Error("health service not registered")
	}
	if _, ok := rt.App.Module("gateway.http"); !ok {
		t.Error("gateway module not loaded")
	}
	if rt.Config.Assistant.SessionTTL.Minutes() != 30 {
		t.Errorf("SessionTTL = %v", rt.Config.Assistant.SessionTTL)
	}

	stats, err := rt.Stats.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stats.Store != "store.memory" || stats.Retriever != "retriever.sqlite" || !slices.Equal(stats.Providers, []string{"provider.openai"}) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestOpen_HealthReportsEmptyIndex(t *testing.T) {
	rt, _ := openTest(t, Options{})
	t.Cleanup(rt.Close)

	report := rt.Checker.Check(context.Background())
	if report.Status != health.StatusDegraded {
		t.Fatalf("status = %q, want degraded (empty index)", report.Status)
	}
	for _, c := range report.Components {
		if c.Name == "store" && c.Status != health.StatusOK {
			t.Errorf("store = %+v", c)
		}
		if c.Name == "retriever" && c.Status == health.StatusOK {
			t.Errorf("retriever = %+v, want failing", c)
		}
	}
}

func TestOpen_SessionLifecycle(t *testing.T) {
	rt, _ := openTest(t, Options{Headless: true})
	t.Cleanup(rt.Close)

	ctx := context.Background()
	id, err := rt.Router.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if ok, _ := rt.Router.Sessions().Exists(ctx, id); !ok {
		t.Fatal("session missing")
	}
	if err := rt.Router.EndSession(ctx, id); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestOpen_HeadlessSkipsGateway(t *testing.T) {
	rt, _ := openTest(t, Options{Headless: true})
	t.Cleanup(rt.Close)

	if _, ok := rt.App.Module("gateway.http"); ok {
		t.Error("gateway loaded in headless mode")
	}
}

func TestOpen_RedactsSecrets(t *testing.T) {
	rt, logs := openTest(t, Options{})
	t.Cleanup(rt.Close)

	rt.Logger.Info("diagnostics", "configured", "hunter2-secret", "key", testAPIKey)
	out := logs.String()
	if strings.Contains(out, "hunter2-secret") || strings.Contains(out, testAPIKey) {
		t.Errorf("secret leaked into logs:\n%s", out)
	}
	if !strings.Contains(out, security.RedactPlaceholder) {
		t.Errorf("expected placeholder in logs:\n%s", out)
	}
}

func TestOpen_InvalidConfigPath(t *testing.T) {
	_, err := Open(context.Background(), Options{ConfigPath: "/nonexistent/config.yaml"})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestOpen_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  store.memory: {}\n")
	_, err := Open(context.Background(), Options{ConfigPath: path, DataDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "retriever") {
		t.Errorf("error = %v, want missing retriever", err)
	}
}

func TestOpen_DotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, strings.Replace(validConfig, "api_key: "+testAPIKey, "api_key: ${POLICYCHAT_TEST_DOTENV_KEY}", 1))
	env := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(env, []byte("POLICYCHAT_TEST_DOTENV_KEY="+testAPIKey+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("POLICYCHAT_TEST_DOTENV_KEY") })

	rt, _ := openTest(t, Options{ConfigPath: path, Headless: true})
	t.Cleanup(rt.Close)
	if got := rt.Redactor.Redact(testAPIKey); got != security.RedactPlaceholder {
		t.Errorf("key from .env not registered with the redactor: %q", got)
	}
}

func TestRuntime_StartStop(t *testing.T) {
	rt, _ := openTest(t, Options{})
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rt.Stop()
}

func TestModuleIDs_GatewaysLast(t *testing.T) {
	cfg := &config.Config{Modules: map[string]yaml.Node{
		"gateway.http":     {},
		"provider.openai":  {},
		"retriever.sqlite": {},
		"store.memory":     {},
	}}
	want := []string{"store.memory", "retriever.sqlite", "provider.openai", "gateway.http"}
	if got := ModuleIDs(cfg); !slices.Equal(got, want) {
		t.Errorf("ModuleIDs = %v, want %v", got, want)
	}
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "policychat")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "policychat.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	_, err := ResolveConfigPath()
	if !errors.Is(err, errNoConfig) {
		t.Errorf("err = %v, want errNoConfig", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := DefaultConfigPath(), "/custom/config/policychat/policychat.yaml"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOpen_GatewayFailureReleasesBackends(t *testing.T) {
	cfg := validConfig + "  test.stopcounter: {}\n  gateway.broken: {}\n"
	before := counterStops.Load()

	var logs bytes.Buffer
	_, err := Open(context.Background(), Options{
		ConfigPath: writeConfig(t, cfg),
		DataDir:    t.TempDir(),
		LogOutput:  &logs,
	})
	if err == nil || !strings.Contains(err.Error(), "gateway.broken") {
		t.Fatalf("Open error = %v, want gateway.broken failure", err)
	}
	if got := counterStops.Load() - before; got != 1 {
		t.Errorf("backend stopped %d times, want 1", got)
	}
}
