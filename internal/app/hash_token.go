package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/feedsift/internal/auth"
)

func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	token := fs.String("token", "", "API token to hash (read from stdin when empty)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	value := strings.TrimSpace(*token)
	if value == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "--token is required")
			return 2
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		fmt.Fprintln(os.Stderr, "--token is required")
		return 2
	}

	hash, err := auth.HashToken(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		return 1
	}
	fmt.Printf("API_TOKEN_HASH=%s\n", hash)
	return 0
}
