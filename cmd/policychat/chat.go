package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/internal/session"
	"github.com/spf13/cobra"
)

func chatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.openHeadless(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := rt.Start(); err != nil {
				return err
			}
			defer rt.Stop()
			return chatLoop(cmd.Context(), rt.Router, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// chatLoop runs one conversation over in and out. It ends on goodbye, on
// end of input or when the session expires.
func chatLoop(ctx context.Context, assistant *router.Router, in io.Reader, out io.Writer) error {
	id, err := assistant.StartSession(ctx)
	if err != nil {
		return err
	}
	ended := false
	defer func() {
		if !ended {
			_ = assistant.EndSession(context.WithoutCancel(ctx), id)
		}
	}()

	fmt.Fprintln(out, "Ask me anything about our privacy policy. Say goodbye to leave.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), security.DefaultMaxBodySize)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := security.ValidateUtterance(line, security.DefaultMaxUtterance); err != nil {
			fmt.Fprintln(out, "That message is too long, please shorten it.")
			continue
		}

		res, err := assistant.HandleTurn(ctx, id, line)
		switch {
		case errors.Is(err, session.ErrNotFound):
			ended = true
			fmt.Fprintln(out, "Your session has expired. Please start a new chat.")
			return nil
		case err != nil && res.Response == "":
			return err
		}
		fmt.Fprintln(out, res.Response)
		if res.EndSession {
			ended = true
			return assistant.EndSession(ctx, id)
		}
	}
}
