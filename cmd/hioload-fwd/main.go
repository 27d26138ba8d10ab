// File: cmd/hioload-fwd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-fwd <localPort> <remoteHost> <remotePort>

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-fwd/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
