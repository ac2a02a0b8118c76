package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/ordercrawl/internal/cli"
)

func main() {
	// Cancelling the context stops the crawl between orders; state already
	// written to the store lets the next run resume.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
