package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/flemzord/policychat/internal/health"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("a critical component is down")

func healthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the store, retriever and language models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.openHeadless(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			report := rt.Checker.Check(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Status == health.StatusDown {
				return errUnhealthy
			}
			return nil
		},
	}
}

func statsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print active sessions and configured backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.openHeadless(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.Stats.Collect(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
