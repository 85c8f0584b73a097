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
)

func runItems(args []string) int {
	fs := flag.NewFlagSet("items", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Second, "Command timeout")
	feedID := fs.String("feed", "", "Feed UUID")
	unread := fs.Bool("unread", false, "Only list unread items")
	limit := fs.Int("limit", 50, "Maximum items to list")
	offset := fs.Int("offset", 0, "Items to skip")
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
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	if *offset < 0 {
		fmt.Fprintln(os.Stderr, "--offset must be >= 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	items, err := pool.ListFeedItems(ctx, strings.TrimSpace(*feedID), db.ListFeedItemsOptions{
		UnreadOnly: *unread,
		Limit:      *limit,
		Offset:     *offset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "List items failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(items); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable([]string{"item_id", "title", "language", "post_time", "duplicates", "read"}, itemRows(items)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func itemRows(items []db.FeedItemRecord) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ItemUUID,
			truncateForTable(item.Title, 48),
			item.Language,
			formatUTCTimestampPtr(item.PostTime),
			strconv.Itoa(len(item.DuplicateIDs)),
			strconv.FormatBool(item.IsRead),
		})
	}
	return rows
}
