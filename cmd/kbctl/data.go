package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/supportstack/kbctl/internal/config"
	"github.com/supportstack/kbctl/internal/seedfile"
)

func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(context.Background())
	if err != nil {
		fatalf("stats failed: %v", err)
	}

	fmt.Println("Knowledge base statistics")
	fmt.Printf("  Total entries: %d\n", stats.TotalCount)
	fmt.Printf("  Recent additions (7 days): %d\n", stats.RecentAdditions)

	fmt.Println("\nCategories:")
	labels := make([]string, 0, len(stats.Categories))
	for label := range stats.Categories {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("  %s: %d\n", label, stats.Categories[label])
	}

	fmt.Println("\nMost used:")
	for _, r := range stats.MostUsed {
		fmt.Printf("  %s: %d times\n", r.Title, r.UsageCount)
	}
}

func tagsCmd(args []string) {
	fs := flag.NewFlagSet("tags", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	tags, err := store.AllTags(context.Background())
	if err != nil {
		fatalf("tags failed: %v", err)
	}
	if len(tags) == 0 {
		fmt.Println("No tags yet.")
		return
	}
	for _, tc := range tags {
		fmt.Printf("%4d  %s\n", tc.Count, tc.Tag)
	}
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kbctl export <file>")
		os.Exit(2)
	}
	outPath := filepath.Clean(fs.Arg(0))

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	snap, err := store.Export(context.Background())
	if err != nil {
		fatalf("export failed: %v", err)
	}

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		fatalf("encode snapshot: %v", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		fatalf("write %s: %v", outPath, err)
	}
	fmt.Printf("Exported %d entries and %d usage events to %s\n", len(snap.Knowledge), len(snap.Usage), outPath)
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kbctl import <file>")
		os.Exit(2)
	}

	drafts, err := seedfile.ParseFile(filepath.Clean(fs.Arg(0)))
	if err != nil {
		fatalf("import failed: %v", err)
	}

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for i, d := range drafts {
		if _, err := store.Create(ctx, d); err != nil {
			fatalf("import failed at entry %d (%s): %v", i+1, strings.TrimSpace(d.Title), err)
		}
	}
	fmt.Printf("Imported %d entries\n", len(drafts))
}

func reindexCmd(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.RebuildIndex(context.Background()); err != nil {
		fatalf("reindex failed: %v", err)
	}
	fmt.Println("Full-text index rebuilt.")
}
