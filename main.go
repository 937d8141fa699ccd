package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yaklabco/snowhook/cmd/snowhook"
)

func main() {
	os.Exit(actualMain())
}

func actualMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := snowhook.NewRootCmd(ctx)

	// fang reports the error on stderr; stdout stays empty on failure.
	err := snowhook.ExecuteWithFang(ctx, rootCmd)
	return snowhook.ExitCode(err)
}
