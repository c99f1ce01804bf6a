// Package main is the entry point for the policychat CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that opens the runtime.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

func (g *globalFlags) options() app.Options {
	return app.Options{
		ConfigPath: g.configPath,
		Version:    version,
		DataDir:    g.dataDir,
		LogLevel:   g.logLevel,
	}
}

// openHeadless opens the runtime without gateways. Logs go to logs so
// they do not interleave with command output.
func (g *globalFlags) openHeadless(ctx context.Context, logs io.Writer) (*app.Runtime, error) {
	opts := g.options()
	opts.Headless = true
	opts.LogOutput = logs
	if opts.LogLevel == "" {
		opts.LogLevel = "warn"
	}
	return app.Open(ctx, opts)
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "policychat",
		Short:         "A customer-service assistant that answers questions about a privacy policy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Override the data directory")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	root.AddCommand(
		versionCmd(),
		serveCmd(flags),
		chatCmd(flags),
		ingestCmd(flags),
		healthCmd(flags),
		statsCmd(flags),
		mcpCmd(flags),
		initCmd(),
		configCmd(),
		serviceCmd(flags),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "policychat %s (commit: %s, built: %s)\n", version, commit, date)
			groups := core.Namespaces()
			if len(groups) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, group := range groups {
				fmt.Fprintf(out, "  %s:\n", group)
				for _, mod := range core.GetModulesByNamespace(group) {
					fmt.Fprintf(out, "    %s\n", mod.ID)
				}
			}
		},
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), flags.options())
		},
	}
}
