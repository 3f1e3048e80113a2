package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/supportstack/kbctl/internal/config"
	"github.com/supportstack/kbctl/internal/kb"
	"github.com/supportstack/kbctl/internal/quickentry"
)

func addCmd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	interactive := fs.Bool("i", false, "Prompt for each field interactively")

	title := fs.String("title", "", "Issue title (required)")
	problem := fs.String("problem", "", "Problem description (required)")
	solution := fs.String("solution", "", "Solution steps (required)")
	categories := fs.String("categories", "", "Comma-separated categories (default: general)")
	product := fs.String("product", "", "Product area")
	apiVersion := fs.String("api-version", "", "API version (e.g. 2025-07)")
	code := fs.String("code", "", "Code examples")
	tags := fs.String("tags", "", "Comma-separated tags")
	notes := fs.String("notes", "", "Additional notes")
	_ = fs.Parse(args)

	store, cfg, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	var draft kb.Draft
	if *interactive {
		if !quickentry.StdinIsTerminal() {
			fatalf("interactive add needs a terminal on stdin")
		}
		draft, err = quickentry.Prompt(quickentry.Options{
			Categories: cfg.PromptCategories(),
			Products:   cfg.Products,
		})
		if err != nil {
			fatalf("interactive entry failed: %v", err)
		}
	} else {
		draft = kb.Draft{
			Title:        *title,
			Problem:      *problem,
			Solution:     *solution,
			Categories:   splitList(*categories),
			Product:      *product,
			APIVersion:   *apiVersion,
			CodeExamples: *code,
			Tags:         splitList(*tags),
			Notes:        *notes,
		}
	}

	publicID, err := store.Create(context.Background(), draft)
	if err != nil {
		fatalf("add failed: %v", err)
	}
	fmt.Printf("Knowledge added. ID: %s\n", publicID)
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kbctl show <id>")
		os.Exit(2)
	}
	idArg := fs.Arg(0)

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	var entry *kb.Entry
	if id, convErr := strconv.ParseInt(idArg, 10, 64); convErr == nil {
		entry, err = store.Get(context.Background(), id, "")
	} else {
		entry, err = store.Get(context.Background(), 0, idArg)
	}
	if err != nil {
		fatalf("show failed: %v", err)
	}
	if entry == nil {
		fatalf("entry %s not found", idArg)
	}
	printEntry(*entry, true)
}

func useCmd(args []string) {
	fs := flag.NewFlagSet("use", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	usageContext := fs.String("context", "manual", "Where the entry was used (e.g. ticket id)")
	helpful := fs.String("helpful", "", "Whether it helped: true|false (empty: not reported)")
	notes := fs.String("notes", "", "Usage notes")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kbctl use <id> [flags]")
		os.Exit(2)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fatalf("invalid entry id: %s", fs.Arg(0))
	}

	helpfulVal, err := parseHelpful(*helpful)
	if err != nil {
		fatalf("%v", err)
	}

	store, _, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.RecordUsage(context.Background(), id, *usageContext, helpfulVal, *notes); err != nil {
		fatalf("use failed: %v", err)
	}
	fmt.Printf("Usage recorded for entry %d\n", id)
}
