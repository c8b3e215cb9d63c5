package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tila/internal/cli"
	"tila/internal/cli/styles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
