package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/feedsift/internal/cli"
	"horse.fit/feedsift/internal/logging"
	"horse.fit/feedsift/internal/pipeline"
)

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 90*time.Second, "Command timeout")
	feedID := fs.String("feed", "", "Feed UUID to rescan")
	since := fs.String("since", "", "Earliest post time to scan (RFC3339, default: --until minus 7 days)")
	until := fs.String("until", "", "Latest post time to scan (RFC3339, default: now)")
	dryRun := fs.Bool("dry-run", false, "Report duplicate pairs without linking them")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*feedID) == "" {
		fmt.Fprintln(os.Stderr, "--feed is required")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	opts := pipeline.DedupOptions{DryRun: *dryRun}
	sinceTS, err := parseOptionalRFC3339("--since", *since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}
	untilTS, err := parseOptionalRFC3339("--until", *until)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}
	if sinceTS != nil {
		opts.Since = *sinceTS
	}
	if untilTS != nil {
		opts.Until = *untilTS
	}
	if sinceTS != nil && untilTS != nil && sinceTS.After(*untilTS) {
		fmt.Fprintln(os.Stderr, "--since must be <= --until")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	svc := pipeline.NewService(pool, cfg.DedupPolicy(), logger)
	result, err := svc.DedupFeed(ctx, strings.TrimSpace(*feedID), opts)
	if err != nil {
		logger.Error().Err(err).Str("feed_id", *feedID).Msg("dedup failed")
		fmt.Fprintf(os.Stderr, "Dedup failed: %v\n", err)
		return 1
	}

	logger.Info().
		Str("feed_id", *feedID).
		Int("scanned", result.Scanned).
		Int("pairs", len(result.Pairs)).
		Int("linked", result.Linked).
		Bool("dry_run", *dryRun).
		Msg("dedup completed")

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	for _, pair := range result.Pairs {
		fmt.Printf("pair left=%s right=%s\n", pair.Left, pair.Right)
	}
	fmt.Printf(
		"dedup scanned=%d pairs=%d linked=%d dry_run=%t\n",
		result.Scanned,
		len(result.Pairs),
		result.Linked,
		*dryRun,
	)
	return 0
}
