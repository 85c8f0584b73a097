package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/feedsift/internal/cli"
	"horse.fit/feedsift/internal/config"
	"horse.fit/feedsift/internal/dedup"
	"horse.fit/feedsift/internal/reader"
)

func runCompare(args []string) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	leftHash := fs.String("left-hash", "", "Semantic hash of the first item")
	rightHash := fs.String("right-hash", "", "Semantic hash of the second item")
	leftTime := fs.String("left-time", "", "Post time of the first item (RFC3339)")
	rightTime := fs.String("right-time", "", "Post time of the second item (RFC3339)")
	threshold := fs.Int("threshold", -1, "Override SIMILARITY_THRESHOLD")
	window := fs.Duration("window", 0, "Override SIMILARITY_WINDOW_MILLISECOND")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*leftHash) == "" || strings.TrimSpace(*rightHash) == "" {
		fmt.Fprintln(os.Stderr, "--left-hash and --right-hash are required")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	left, err := hashedItemFromFlags("left", *leftHash, *leftTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}
	right, err := hashedItemFromFlags("right", *rightHash, *rightTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	classifier := cfg.DedupPolicy()
	if *threshold >= 0 {
		classifier.MaxDistance = *threshold
	}
	if *window > 0 {
		classifier.Window = *window
	}

	result := classifier.Explain(left, right)
	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{
			"result":                        result,
			"similarity_threshold":          classifier.MaxDistance,
			"similarity_window_millisecond": classifier.Window.Milliseconds(),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf(
		"compare duplicate=%t similar=%t comparable=%t distance=%d within_window=%t threshold=%d window=%s\n",
		result.Duplicate,
		result.Similar,
		result.Comparable,
		result.Distance,
		result.WithinRange,
		classifier.MaxDistance,
		classifier.Window,
	)
	return 0
}

func hashedItemFromFlags(label, hash, postTime string) (dedup.HashedItem, error) {
	item := dedup.HashedItem{ID: label, SemanticHash: strings.TrimSpace(hash)}
	ts, err := parseOptionalRFC3339("--"+label+"-time", postTime)
	if err != nil {
		return dedup.HashedItem{}, err
	}
	if ts != nil {
		item.PostTime = *ts
	}
	return item, nil
}

func runHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	text := fs.String("text", "", "Text to hash")
	file := fs.String("file", "", "Path to a text file (overrides --text)")
	html := fs.Bool("html", false, "Treat the input as HTML and extract readable text first")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	input := *text
	if path := strings.TrimSpace(*file); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			return 1
		}
		input = string(raw)
	}
	if *html {
		extracted, err := reader.Extractor{}.FromHTML(input, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to extract text: %v\n", err)
			return 1
		}
		input = extracted
	} else {
		input = reader.CleanText(input)
	}

	hash := dedup.SemanticHash(input)
	if hash == "" {
		fmt.Fprintln(os.Stderr, "Input has no hashable tokens")
		return 1
	}
	fmt.Println(hash)
	return 0
}
