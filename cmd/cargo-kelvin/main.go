package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"

	"cargo-kelvin/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// the browser launcher must not interleave its output with ours
	browser.Stdout = os.Stderr

	code := cli.Run(ctx, os.Args[1:], cli.Env{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	cancel()
	os.Exit(code)
}
