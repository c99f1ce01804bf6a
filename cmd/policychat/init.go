package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/policychat/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initAnswers holds the wizard choices.
type initAnswers struct {
	Store     string
	RedisURL  string
	Retriever string
	Provider  string
	Bind      string
	AuthToken string
	Persona   string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Store:     "store.memory",
		RedisURL:  "redis://localhost:6379/0",
		Retriever: "retriever.sqlite",
		Provider:  "provider.openai",
		Bind:      "127.0.0.1:8080",
	}
}

func initCmd() *cobra.Command {
	var path string
	var force, yes bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = app.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := defaultAnswers()
			if !yes {
				if err := runWizard(&answers); err != nil {
					return err
				}
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Next: policychat ingest <policy.md> && policychat serve")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	return cmd
}

func runWizard(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Session store").
				Options(
					huh.NewOption("In-memory (single process)", "store.memory"),
					huh.NewOption("Redis", "store.redis"),
				).
				Value(&a.Store),
			huh.NewSelect[string]().
				Title("Policy search index").
				Options(
					huh.NewOption("SQLite full-text search", "retriever.sqlite"),
					huh.NewOption("Bleve", "retriever.bleve"),
				).
				Value(&a.Retriever),
			huh.NewSelect[string]().
				Title("Language model provider").
				Options(
					huh.NewOption("OpenAI (or any compatible endpoint)", "provider.openai"),
					huh.NewOption("Anthropic", "provider.anthropic"),
				).
				Value(&a.Provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Redis URL").
				Value(&a.RedisURL),
		).WithHideFunc(func() bool { return a.Store != "store.redis" }),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Value(&a.Bind),
			huh.NewInput().
				Title("API bearer token (leave empty for none)").
				EchoMode(huh.EchoModePassword).
				Value(&a.AuthToken),
			huh.NewInput().
				Title("How should the assistant introduce itself?").
				Placeholder("the privacy assistant").
				Value(&a.Persona),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("init aborted")
		}
		return err
	}
	return nil
}

// renderConfig produces the YAML configuration for a. Secrets are
// referenced through environment variables, never written inline.
func renderConfig(a initAnswers) ([]byte, error) {
	storeCfg := map[string]any{}
	if a.Store == "store.redis" {
		storeCfg["url"] = a.RedisURL
	}

	providerCfg := map[string]any{}
	switch a.Provider {
	case "provider.anthropic":
		providerCfg["api_key"] = "${ANTHROPIC_API_KEY}"
	default:
		providerCfg["api_key"] = "${OPENAI_API_KEY}"
	}

	gatewayCfg := map[string]any{"bind": a.Bind}
	if a.AuthToken != "" {
		gatewayCfg["auth"] = map[string]any{"bearer_token": "${POLICYCHAT_TOKEN}"}
	}

	assistant := map[string]any{"session_ttl": "1h"}
	if a.Persona != "" {
		assistant["persona"] = a.Persona
	}

	doc := map[string]any{
		"version":   "1",
		"log_level": "info",
		"assistant": assistant,
		"modules": map[string]any{
			a.Store:        storeCfg,
			a.Retriever:    map[string]any{},
			a.Provider:     providerCfg,
			"gateway.http": gatewayCfg,
		},
	}
	return yaml.Marshal(doc)
}
