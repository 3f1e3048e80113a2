package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/supportstack/kbctl/internal/config"
	"github.com/supportstack/kbctl/internal/kb"
)

func searchCmd(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	categories := fs.String("categories", "", "Comma-separated category filter (any may match)")
	product := fs.String("product", "", "Exact product filter")
	tags := fs.String("tags", "", "Comma-separated tag filter (all must match)")
	limit := fs.Int("limit", 0, "Max results (default 20)")
	detailed := fs.Bool("d", false, "Show full entries")
	_ = fs.Parse(args)

	query := strings.Join(fs.Args(), " ")

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	results, err := store.Search(context.Background(), kb.SearchRequest{
		Query:      query,
		Categories: splitList(*categories),
		Product:    *product,
		Tags:       splitList(*tags),
		Limit:      *limit,
	})
	if err != nil {
		fatalf("search failed: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("No entries found.")
		return
	}
	fmt.Printf("Found %d entries:\n", len(results))
	for _, e := range results {
		printEntry(e, *detailed)
	}
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	categories := fs.String("categories", "", "Comma-separated category filter")
	limit := fs.Int("limit", 0, "Max results (default 20)")
	detailed := fs.Bool("d", false, "Show full entries")
	_ = fs.Parse(args)

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	results, err := store.Search(context.Background(), kb.SearchRequest{
		Categories: splitList(*categories),
		Limit:      *limit,
	})
	if err != nil {
		fatalf("list failed: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("No entries found.")
		return
	}
	fmt.Printf("Showing %d entries:\n", len(results))
	for _, e := range results {
		printEntry(e, *detailed)
	}
}

func printEntry(e kb.Entry, detailed bool) {
	fmt.Printf("\n[%d] %s\n", e.ID, e.Title)
	fmt.Printf("    Categories: %s\n", strings.Join(e.Categories, ", "))
	if e.Product != "" {
		fmt.Printf("    Product: %s\n", e.Product)
	}
	if len(e.Tags) > 0 {
		fmt.Printf("    Tags: %s\n", strings.Join(e.Tags, ", "))
	}

	if detailed {
		fmt.Printf("\n    Problem:\n    %s\n", e.Problem)
		fmt.Printf("\n    Solution:\n    %s\n", e.Solution)
		if e.CodeExamples != "" {
			fmt.Printf("\n    Code:\n    %s\n", e.CodeExamples)
		}
		if e.Notes != "" {
			fmt.Printf("\n    Notes:\n    %s\n", e.Notes)
		}
		fmt.Printf("\n    Used %d times, created %s\n",
			e.UsageCount,
			time.UnixMilli(e.CreatedAtUnixMs).Format(time.DateTime))
	}
	fmt.Println(strings.Repeat("-", 50))
}

// splitList parses a comma-separated flag value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHelpful converts the optional -helpful flag into a tri-state value:
// nil when not reported.
func parseHelpful(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid -helpful value: %q (want true or false)", raw)
	}
	return &v, nil
}
