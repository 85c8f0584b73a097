package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/feedsift/internal/cli"
	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/ingest"
	"horse.fit/feedsift/internal/logging"
	"horse.fit/feedsift/internal/reader"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	feedID := fs.String("feed", "", "Feed UUID to ingest into")
	payload := fs.String("payload", "", "Feed item payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")
	fetchPages := fs.Bool("fetch-pages", false, "Fetch the item URL when the payload has no body text or HTML")
	fetchTimeout := fs.Duration("fetch-timeout", reader.DefaultFetchTimeout, "Page fetch timeout")

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

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
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

	svc := ingest.NewService(pool, cfg.DedupPolicy(), ingest.Options{
		FetchPages: *fetchPages,
		Extractor:  reader.Extractor{Options: reader.FetchOptions{Timeout: *fetchTimeout}},
	}, logger)

	result, err := svc.IngestPayload(ctx, strings.TrimSpace(*feedID), payloadJSON)
	if err != nil {
		var validationErr *ingest.ValidationError
		switch {
		case errors.As(err, &validationErr):
			fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
			return 2
		case errors.Is(err, db.ErrNoRows):
			fmt.Fprintf(os.Stderr, "Feed not found: %s\n", strings.TrimSpace(*feedID))
			return 1
		}
		logger.Error().Err(err).Str("feed_id", *feedID).Msg("ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"ingest item_id=%s inserted=%t duplicates=%d language=%s\n",
		result.Item.ItemUUID,
		result.Inserted,
		len(result.DuplicateIDs),
		result.Item.Language,
	)
	for _, id := range result.DuplicateIDs {
		fmt.Printf("duplicate_of=%s\n", id)
	}
	return 0
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}

func parseOptionalRFC3339(fieldName, raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", fieldName, err)
	}
	utc := ts.UTC()
	return &utc, nil
}
