package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/policychat/internal/core"
)

// Module groups whose cardinality is constrained.
const (
	GroupStore     = "store"
	GroupRetriever = "retriever"
	GroupProvider  = "provider"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and enforces exactly
// one store, exactly one retriever and at least one provider.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg).All() {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, unknownModule(id))
		}
	}

	if len(cfg.Modules) > 0 {
		errs = append(errs, validateGroups(cfg)...)
	}
	errs = append(errs, validateAssistant(&cfg.Assistant)...)

	if err := cfg.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: tracing: %w", err))
	}

	return errors.Join(errs...)
}

// ModulesInGroup returns the sorted configured module IDs of a group.
func ModulesInGroup(cfg *Config, group string) []string {
	var ids []string
	for _, id := range Resolve(cfg).All() {
		if core.ModuleID(id).Namespace() == group {
			ids = append(ids, id)
		}
	}
	return ids
}

func unknownModule(id string) error {
	known := core.GetModulesByNamespace(core.ModuleID(id).Namespace())
	if len(known) == 0 {
		return fmt.Errorf("config: unknown module %q", id)
	}
	ids := make([]string, len(known))
	for i, info := range known {
		ids[i] = string(info.ID)
	}
	return fmt.Errorf("config: unknown module %q (compiled: %s)", id, strings.Join(ids, ", "))
}

func validateGroups(cfg *Config) []error {
	var errs []error
	for _, group := range []string{GroupStore, GroupRetriever} {
		switch ids := ModulesInGroup(cfg, group); len(ids) {
		case 1:
		case 0:
			errs = append(errs, fmt.Errorf("config: exactly one %s module is required, none configured", group))
		default:
			errs = append(errs, fmt.Errorf("config: exactly one %s module is required, got %s", group, strings.Join(ids, ", ")))
		}
	}
	if len(ModulesInGroup(cfg, GroupProvider)) == 0 {
		errs = append(errs, errors.New("config: at least one provider module is required"))
	}
	return errs
}

func validateAssistant(a *Assistant) []error {
	var errs []error
	if a.SessionTTL <= 0 {
		errs = append(errs, errors.New("config: assistant.session_ttl must be positive"))
	}
	if a.MaxSessions < 0 {
		errs = append(errs, errors.New("config: assistant.max_sessions must not be negative"))
	}
	if a.QueryResults <= 0 {
		errs = append(errs, errors.New("config: assistant.query_results must be positive"))
	}
	if a.FollowupResults <= 0 {
		errs = append(errs, errors.New("config: assistant.followup_results must be positive"))
	}
	if a.RelevanceCutoff <= 0 {
		errs = append(errs, errors.New("config: assistant.relevance_cutoff must be positive"))
	}
	if a.MinCacheLength < 0 {
		errs = append(errs, errors.New("config: assistant.min_cache_length must not be negative"))
	}
	for name, d := range map[string]int64{
		"generation_timeout": int64(a.GenerationTimeout),
		"retrieval_timeout":  int64(a.RetrievalTimeout),
		"similarity_timeout": int64(a.SimilarityTimeout),
		"classify_timeout":   int64(a.ClassifyTimeout),
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("config: assistant.%s must be positive", name))
		}
	}
	return errs
}

// ParseLevel maps a log_level value onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log_level %q", s)
	}
}
