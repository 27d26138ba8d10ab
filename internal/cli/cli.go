// File: internal/cli/cli.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cobra root command for the hioload-fwd binary.

package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/forward"
)

// NewRootCommand builds the command. Engine and hook output go to logOut.
func NewRootCommand(logOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hioload-fwd <localPort> <remoteHost> <remotePort>",
		Short: "Forward a local TCP port to a fixed remote endpoint",
		Long: `Listen on 127.0.0.1:<localPort> and relay every accepted connection
to <remoteHost>:<remotePort> until either side closes.

SIGINT or SIGTERM closes all connections and exits cleanly.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(3)(cmd, args); err != nil {
				return fmt.Errorf("%w\nusage: %s", err, cmd.UseLine())
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ParseArgs(args)
			if err != nil {
				return err
			}
			logger := log.New(logOut, "", log.LstdFlags)
			return Serve(cmd.Context(), cfg, forward.WithLogger(logger))
		},
	}
	return cmd
}

// ParseArgs turns the three positional arguments into an engine config.
func ParseArgs(args []string) (forward.Config, error) {
	cfg := forward.DefaultConfig()
	if len(args) != 3 {
		return cfg, api.NewError(api.ErrCodeInvalidArgument, "expected 3 arguments").
			WithContext("got", len(args))
	}
	var err error
	if cfg.LocalPort, err = parsePort("local port", args[0]); err != nil {
		return cfg, err
	}
	cfg.RemoteHost = args[1]
	if cfg.RemotePort, err = parsePort("remote port", args[2]); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parsePort(name, s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, api.NewError(api.ErrCodeInvalidArgument, "invalid "+name).
			WithContext("value", s)
	}
	return p, nil
}

// Serve runs a forwarder until ctx is done or the engine fails.
func Serve(ctx context.Context, cfg forward.Config, opts ...forward.Option) error {
	e, err := forward.New(cfg, opts...)
	if err != nil {
		return err
	}
	runErr := e.Run(ctx)
	if err := e.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// Execute runs the command with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := NewRootCommand(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
