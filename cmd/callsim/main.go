// Package main is the call simulator CLI. It runs test sets of two-party calls
// under emulated network conditions and reports their audio quality.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("callsim failed", "error", err)
		stop()
		os.Exit(1)
	}
}
