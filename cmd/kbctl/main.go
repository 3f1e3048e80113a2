package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/supportstack/kbctl/internal/config"
	"github.com/supportstack/kbctl/internal/kb"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "add":
		addCmd(os.Args[2:])
	case "search":
		searchCmd(os.Args[2:])
	case "list":
		listCmd(os.Args[2:])
	case "show":
		showCmd(os.Args[2:])
	case "use":
		useCmd(os.Args[2:])
	case "stats":
		statsCmd(os.Args[2:])
	case "tags":
		tagsCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	case "import":
		importCmd(os.Args[2:])
	case "reindex":
		reindexCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "version":
		fmt.Printf("kbctl %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `kbctl

Usage:
  kbctl add [flags]
  kbctl search [query] [flags]
  kbctl list [flags]
  kbctl show <id>
  kbctl use <id> [flags]
  kbctl stats
  kbctl tags
  kbctl export <file>
  kbctl import <file>
  kbctl reindex
  kbctl serve [flags]
  kbctl version

Commands:
  add         Add a knowledge entry (use -i for interactive prompts).
  search      Search entries by text query, category, product or tag.
  list        List entries, most recent first.
  show        Show one entry in full by internal or public id.
  use         Record that an entry was used on a case.
  stats       Show knowledge base statistics.
  tags        Show all tags with usage counts.
  export      Write a full JSON snapshot of entries and usage.
  import      Add entries in bulk from a YAML seed file.
  reindex     Rebuild the full-text index from the entries table.
  serve       Run the local web UI and JSON API on loopback.
  version     Print build information.

`)
}

// openStore loads config and opens the knowledge store. It is shared by
// every data-touching subcommand.
func openStore(cfgPath string) (*kb.Store, *config.Config, error) {
	cfg, err := config.Load(filepath.Clean(cfgPath))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := kb.Open(cfg.ResolvedDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, cfg, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
