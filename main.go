package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abhisek/gauge/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	os.Exit(cmd.ExitCode(err))
}
