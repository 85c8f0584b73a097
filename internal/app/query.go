package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"horse.fit/feedsift/internal/expr"
	"horse.fit/feedsift/internal/query"
)

func runTokenize(args []string) int {
	fs := flag.NewFlagSet("tokenize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	queryText := fs.String("query", "", "Search query text")
	withExpression := fs.Bool("expression", false, "Also print the filter expression built from the terms")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "tokenize does not accept positional arguments; use --query")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	terms := query.Tokenize(*queryText)
	if outputFormat == outputFormatJSON {
		out := map[string]any{
			"terms": termsOrEmpty(terms),
			"query": query.Serialize(terms),
		}
		if *withExpression {
			out["expression"] = expr.FromTerms(terms)
		}
		if err := printJSON(out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTermsTable(terms); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	if *withExpression {
		encoded, err := expr.Encode(expr.FromTerms(terms))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode expression: %v\n", err)
			return 1
		}
		if encoded == nil {
			encoded = json.RawMessage("null")
		}
		fmt.Printf("expression=%s\n", encoded)
	}
	return 0
}

func runSerialize(args []string) int {
	fs := flag.NewFlagSet("serialize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	terms := fs.String("terms", "", "Terms as a JSON array of {key,value,negated}")
	termsFile := fs.String("terms-file", "", "Path to a JSON terms file (overrides --terms)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	raw, err := loadJSONInput(*terms, *termsFile, "terms")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid terms: %v\n", err)
		return 2
	}
	parsed, err := decodeTerms(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid terms: %v\n", err)
		return 2
	}

	fmt.Println(query.Serialize(parsed))
	return 0
}

func decodeTerms(raw json.RawMessage) ([]query.Term, error) {
	var terms []query.Term
	if err := json.Unmarshal(raw, &terms); err != nil {
		return nil, fmt.Errorf("decode terms: %w", err)
	}
	return terms, nil
}

func writeTermsTable(terms []query.Term) error {
	rows := make([][]string, 0, len(terms))
	for i, term := range terms {
		rows = append(rows, []string{
			strconv.Itoa(i),
			term.Key,
			term.Value,
			strconv.FormatBool(term.Negated),
		})
	}
	return writeTable([]string{"#", "key", "value", "negated"}, rows)
}

func termsOrEmpty(terms []query.Term) []query.Term {
	if terms == nil {
		return []query.Term{}
	}
	return terms
}
