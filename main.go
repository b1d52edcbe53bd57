// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulngate/vulngate/cmd"
	"github.com/vulngate/vulngate/internal/observability"
)

// main is the entry point for the vulngate CLI.
func main() {
	// The gate's exit status is its verdict, so signal handling must not
	// bypass the code mapping in cmd.Execute.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()

	observability.Sync()
	os.Exit(code)
}
