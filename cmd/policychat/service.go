package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/flemzord/policychat/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts the runtime to the service manager's Start/Stop.
type program struct {
	opts app.Options
	rt   *app.Runtime
}

func (p *program) Start(_ service.Service) error {
	rt, err := app.Open(context.Background(), p.opts)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		rt.Close()
		return err
	}
	p.rt = rt
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.rt != nil {
		p.rt.Stop()
	}
	return nil
}

func serviceConfig(flags *globalFlags) (*service.Config, error) {
	args := []string{"service", "run"}
	if flags.configPath != "" {
		abs, err := filepath.Abs(flags.configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if flags.dataDir != "" {
		abs, err := filepath.Abs(flags.dataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	return &service.Config{
		Name:        "policychat",
		DisplayName: "Policy Chat Assistant",
		Description: "Answers customer questions about the privacy policy.",
		Arguments:   args,
	}, nil
}

func serviceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run>",
		Short:     "Manage policychat as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(slices.Clone(service.ControlAction[:]), "run"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serviceConfig(flags)
			if err != nil {
				return err
			}
			prg := &program{opts: flags.options()}
			svc, err := service.New(prg, cfg)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if !slices.Contains(service.ControlAction[:], action) {
				return fmt.Errorf("unknown action %q (valid: %v, run)", action, service.ControlAction)
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
			return nil
		},
	}
}
