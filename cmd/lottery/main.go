package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/smartcontractkit/lottery-deployments/pkg/commands"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

// logLevelEnv selects the log level, "info" when unset.
const logLevelEnv = "LOTTERY_LOG_LEVEL"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	lvl := zap.InfoLevel
	if s := os.Getenv(logLevelEnv); s != "" {
		parsed, err := logger.ParseLevel(s)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", logLevelEnv, err)
		}
		lvl = parsed
	}

	lggr, err := (&logger.Config{Level: lvl, Development: true}).New()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = lggr.Sync() }()

	root, err := commands.NewCommand(commands.Config{Logger: lggr})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return root.ExecuteContext(ctx)
}
