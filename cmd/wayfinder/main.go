// Wayfinder - indoor turn-by-turn guidance server
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-wayfinder/cmd/wayfinder/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Errors are printed by the commands themselves
	if err := commands.Execute(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
