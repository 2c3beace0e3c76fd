package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gulfsolar/backend/libs/logging"
	"gulfsolar/backend/services/calculator-service/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.NewLogger("calculatorctl")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cli.NewRootCmd(cli.OpenBackend(logger)).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
