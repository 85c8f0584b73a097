package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "tokenize":
		return runTokenize(args[1:])
	case "serialize":
		return runSerialize(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "compare":
		return runCompare(args[1:])
	case "hash":
		return runHash(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	case "health":
		return runHealth(args[1:])
	case "feeds":
		return runFeeds(args[1:])
	case "items":
		return runItems(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "feedsift CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  feedsift <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  tokenize    Split a search query into terms")
	fmt.Fprintln(os.Stderr, "  serialize   Render terms back into query text")
	fmt.Fprintln(os.Stderr, "  validate    Validate filter expression or feed item JSON files")
	fmt.Fprintln(os.Stderr, "  compare     Decide whether two hashed items are duplicates")
	fmt.Fprintln(os.Stderr, "  hash        Compute the semantic hash of a text")
	fmt.Fprintln(os.Stderr, "  hash-token  Hash an API token for API_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "  health      Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  feeds       List or create feeds")
	fmt.Fprintln(os.Stderr, "  items       List the items of a feed")
	fmt.Fprintln(os.Stderr, "  ingest      Ingest one feed item and tag its duplicates")
	fmt.Fprintln(os.Stderr, "  dedup       Rescan a feed for duplicates")
	fmt.Fprintln(os.Stderr, "  serve       Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"feedsift <command> -h\" for command-specific flags.")
}
