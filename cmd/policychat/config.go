package main

import (
	"fmt"
	"io"
	"os"

	"github.com/flemzord/policychat/internal/config"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and build every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: args[0],
				Version:    version,
				LogLevel:   "error",
				LogOutput:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			ids := app.ModuleIDs(rt.Config)
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <path>",
		Short: "Print the configuration with environment expanded and secrets masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(args[0], cmd.OutOrStdout())
		},
	})
	return cmd
}

// showConfig prints the expanded configuration with secrets redacted.
func showConfig(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}

	redactor := security.NewRedactor()
	for _, s := range cfg.Secrets {
		redactor.AddLiteral(s)
	}
	for _, env := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "POLICYCHAT_TOKEN"} {
		redactor.AddLiteral(os.Getenv(env))
	}
	redactor.RedactMap(doc)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(doc)
}
