package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/feedsift/internal/cli"
	"horse.fit/feedsift/internal/logging"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database ping timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	_, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	policy := cfg.DedupPolicy()
	logger.Info().
		Dur("timeout", *timeout).
		Int("similarity_threshold", policy.MaxDistance).
		Dur("similarity_window", policy.Window).
		Msg("database health check passed")
	fmt.Println("ok: database ping successful")
	return 0
}
