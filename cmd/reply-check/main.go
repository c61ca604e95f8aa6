package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/outreach-tracker/internal/adapters/intake"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *di.CLIFlags, logger *zap.Logger, cli *intake.CLIIntake, store core.TrackingStore) error {
	defer logger.Sync()
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close contact store", zap.Error(err))
		}
	}()

	// Read message from file or stdin
	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading message from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading message from stdin")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := cli.ProcessReader(ctx, reader)
	if err != nil {
		return err
	}
	logger.Debug("Classification finished", zap.String("outcome", string(outcome)))
	return nil
}
