package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bianoble/conda-publish/cmd/conda-publish/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.ExitCode(ctx, cmd.Execute(ctx))
	stop()
	os.Exit(code)
}
