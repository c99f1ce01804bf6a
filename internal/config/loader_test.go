package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsAndDefaults(t *testing.T) {
	t.Setenv("POLICYCHAT_TEST_ADDR", "localhost:6390")

	path := writeFile(t, "policychat.yaml", `
version: "1"
assistant:
  session_ttl: 30m
  acknowledge_cached: true
  engagement_prompts: true
modules:
  store.redis:
    addr: ${POLICYCHAT_TEST_ADDR}
    db: ${POLICYCHAT_TEST_DB:-2}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assistant.SessionTTL != 30*time.Minute || !cfg.Assistant.AcknowledgeCached || !cfg.Assistant.EngagementPrompts {
		t.Errorf("assistant = %+v", cfg.Assistant)
	}
	if cfg.Assistant.QueryResults != DefaultQueryResults || cfg.Assistant.RelevanceCutoff != DefaultRelevanceCutoff {
		t.Errorf("defaults not applied: %+v", cfg.Assistant)
	}
	if cfg.DataDir != DefaultDataDir || cfg.LogLevel != DefaultLogLevel {
		t.Errorf("data_dir = %q, log_level = %q", cfg.DataDir, cfg.LogLevel)
	}

	var redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	}
	node := cfg.Modules["store.redis"]
	if err := node.Decode(&redis); err != nil {
		t.Fatal(err)
	}
	if redis.Addr != "localhost:6390" || redis.DB != 2 {
		t.Errorf("store.redis = %+v", redis)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := writeFile(t, "policychat.yaml", "version: \"1\"\nassistant:\n  persona: ${POLICYCHAT_TEST_UNSET_TOKEN}\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "POLICYCHAT_TEST_UNSET_TOKEN") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("POLICYCHAT_TEST_KEEP", "from-env")
	path := writeFile(t, ".env", "POLICYCHAT_TEST_KEEP=from-file\nPOLICYCHAT_TEST_NEW=loaded\n")
	t.Cleanup(func() { os.Unsetenv("POLICYCHAT_TEST_NEW") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("POLICYCHAT_TEST_KEEP"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
	if got := os.Getenv("POLICYCHAT_TEST_NEW"); got != "loaded" {
		t.Errorf("new variable = %q", got)
	}
}
