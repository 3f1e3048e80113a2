package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/supportstack/kbctl/internal/config"
	"github.com/supportstack/kbctl/internal/lockfile"
	"github.com/supportstack/kbctl/internal/webui"
)

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	port := fs.Int("port", 0, "Loopback port (default from config)")
	_ = fs.Parse(args)

	store, cfg, err := openStore(*cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = store.Close() }()

	logger, err := newLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fatalf("%v", err)
	}

	// One server per database: the lock lives next to the db file.
	lockPath := filepath.Join(filepath.Dir(cfg.ResolvedDBPath()), "serve.lock")
	lock, err := lockfile.Acquire(lockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyLocked) {
			fatalf("another kbctl serve is already running (lock: %s)", lockPath)
		}
		fatalf("acquire lock: %v", err)
	}
	defer func() { _ = lock.Release() }()

	resolvedPort := *port
	if resolvedPort <= 0 {
		resolvedPort = cfg.ResolvedPort()
	}

	srv, err := webui.New(webui.Options{
		Logger:  logger,
		Port:    resolvedPort,
		Store:   store,
		Version: Version,
	})
	if err != nil {
		fatalf("init web ui: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		fatalf("start web ui: %v", err)
	}
	fmt.Printf("Web UI on http://127.0.0.1:%d (Ctrl-C to stop)\n", srv.Port())

	<-ctx.Done()
	_ = srv.Close()
}

func newLogger(format string, level string) (*slog.Logger, error) {
	var h slog.Handler

	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	return slog.New(h), nil
}
