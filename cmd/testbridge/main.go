package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/unicc-ai/testbridge/internal/cli"
	"github.com/unicc-ai/testbridge/internal/registration"
)

// version is set via -ldflags at release time.
var version = "dev"

func main() {
	// .env is optional, ignore a missing file.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	registration.RegisterBuiltins()

	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
