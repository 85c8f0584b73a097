package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/feedsift/internal/cli"
	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/expr"
	"horse.fit/feedsift/internal/query"
)

func runFeeds(args []string) int {
	fs := flag.NewFlagSet("feeds", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Second, "Command timeout")
	limit := fs.Int("limit", 50, "Maximum feeds to list")
	create := fs.Bool("create", false, "Create a feed instead of listing")
	name := fs.String("name", "", "Feed name (with --create)")
	queryText := fs.String("query", "", "Filter query the feed expression is built from (with --create)")
	visibility := fs.String("visibility", db.VisibilityPrivate, "Feed visibility: PRIVATE or GLOBAL (with --create)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	var input db.CreateFeedInput
	if *create {
		input, err = buildCreateFeedInput(*name, *queryText, *visibility)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
			return 2
		}
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	var feeds []db.FeedRecord
	if *create {
		rec, err := pool.CreateFeed(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Create feed failed: %v\n", err)
			return 1
		}
		feeds = []db.FeedRecord{*rec}
	} else {
		feeds, err = pool.ListFeeds(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List feeds failed: %v\n", err)
			return 1
		}
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(feeds); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(feeds))
	for _, feed := range feeds {
		rows = append(rows, []string{
			feed.FeedUUID,
			truncateForTable(feed.Name, 32),
			feed.Visibility,
			truncateForTable(feed.FilterQuery, 48),
			strconv.FormatBool(feedExpressionValid(feed)),
			formatUTCTimestamp(feed.UpdatedAt),
		})
	}
	if err := writeTable([]string{"feed_id", "name", "visibility", "query", "valid", "updated_at"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

// buildCreateFeedInput normalizes the query text and builds the initial
// expression from its terms.
func buildCreateFeedInput(name, queryText, visibility string) (db.CreateFeedInput, error) {
	if strings.TrimSpace(name) == "" {
		return db.CreateFeedInput{}, fmt.Errorf("--name is required")
	}
	normalizedVisibility, err := db.NormalizeVisibility(visibility)
	if err != nil {
		return db.CreateFeedInput{}, err
	}

	input := db.CreateFeedInput{
		Name:       strings.TrimSpace(name),
		Visibility: normalizedVisibility,
	}
	if strings.TrimSpace(queryText) == "" {
		return input, nil
	}

	terms := query.Tokenize(queryText)
	input.FilterQuery = query.Serialize(terms)
	encoded, err := expr.Encode(expr.FromTerms(terms))
	if err != nil {
		return db.CreateFeedInput{}, fmt.Errorf("encode expression: %w", err)
	}
	input.DataExpression = encoded
	return input, nil
}

func feedExpressionValid(feed db.FeedRecord) bool {
	root, err := expr.Parse(feed.DataExpression)
	if err != nil {
		return false
	}
	return expr.IsValid(root)
}
