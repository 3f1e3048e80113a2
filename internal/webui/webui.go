// Package webui serves the loopback-only HTTP surface of kbctl: a JSON API
// over the knowledge store plus a small embedded dashboard page. It is an
// adapter; all semantics live in the kb package.
package webui

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/supportstack/kbctl/internal/kb"
)

//go:embed assets/index.html
var indexHTML []byte

type Options struct {
	Logger *slog.Logger
	Port   int

	// Store is the opened knowledge store the API operates on.
	Store *kb.Store

	// Version is the build version reported by /api/version.
	Version string
}

type Server struct {
	log *slog.Logger

	port    int
	version string

	store *kb.Store

	ln4 net.Listener
	ln6 net.Listener
	srv *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("missing Store")
	}
	port := opts.Port
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid Port: %d", port)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return &Server{
		log:     logger,
		port:    port,
		version: strings.TrimSpace(opts.Version),
		store:   opts.Store,
	}, nil
}

// Start binds both loopback addresses and serves until ctx is canceled.
// Binding only 127.0.0.1/::1 keeps the store off the network.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.srv != nil {
		return nil
	}

	addr4 := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", s.port))
	ln4, err := net.Listen("tcp", addr4)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr4, err)
	}
	addr6 := net.JoinHostPort("::1", fmt.Sprintf("%d", s.port))
	ln6, err := net.Listen("tcp", addr6)
	if err != nil {
		_ = ln4.Close()
		return fmt.Errorf("listen %s: %w", addr6, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.ln4 = ln4
	s.ln6 = ln6

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	go func() {
		if err := s.srv.Serve(ln4); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("web ui server stopped (ipv4)", "error", err)
		}
	}()
	go func() {
		if err := s.srv.Serve(ln6); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("web ui server stopped (ipv6)", "error", err)
		}
	}()

	s.log.Info("web ui listening", "port", s.port)
	return nil
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	}
	if s.ln4 != nil {
		_ = s.ln4.Close()
	}
	if s.ln6 != nil {
		_ = s.ln6.Close()
	}
	s.srv = nil
	s.ln4 = nil
	s.ln6 = nil
	return nil
}

func (s *Server) Port() int {
	if s == nil {
		return 0
	}
	return s.port
}

// Handler returns the route table. Split out from Start so tests can drive
// it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/entries", s.handleEntries)
	mux.HandleFunc("/api/entries/", s.handleEntryByID)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/export", s.handleExport)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearch(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.store.Search(r.Context(), kb.SearchRequest{
		Query:      q.Get("q"),
		Categories: splitParam(q["category"]),
		Product:    q.Get("product"),
		Tags:       splitParam(q["tag"]),
		Limit:      limit,
	})
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var d kb.Draft
	if !readJSON(w, r, &d) {
		return
	}
	if strings.TrimSpace(d.Source) == "" {
		d.Source = "web"
	}

	publicID, err := s.store.Create(r.Context(), d)
	if err != nil {
		var verr *kb.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		s.fail(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"public_id": publicID})
}

// handleEntryByID serves /api/entries/{id} and /api/entries/{id}/use. The
// id segment is the internal numeric id, or the public id for GET lookups.
func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	idPart, action, _ := strings.Cut(rest, "/")
	if idPart == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGet(w, r, idPart)
	case action == "" && r.Method == http.MethodPut:
		s.handleUpdate(w, r, idPart)
	case action == "use" && r.Method == http.MethodPost:
		s.handleUse(w, r, idPart)
	case action == "":
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, idPart string) {
	var e *kb.Entry
	var err error
	if id, convErr := strconv.ParseInt(idPart, 10, 64); convErr == nil {
		e, err = s.store.Get(r.Context(), id, "")
	} else {
		e, err = s.store.Get(r.Context(), 0, idPart)
	}
	if err != nil {
		s.fail(w, "get", err)
		return
	}
	if e == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, idPart string) {
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	var d kb.Draft
	if !readJSON(w, r, &d) {
		return
	}

	ok, err := s.store.Update(r.Context(), id, d)
	if err != nil {
		var verr *kb.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		s.fail(w, "update", err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleUse(w http.ResponseWriter, r *http.Request, idPart string) {
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	var body struct {
		Context string `json:"context"`
		Helpful *bool  `json:"helpful"`
		Notes   string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if !readJSON(w, r, &body) {
			return
		}
	}
	if strings.TrimSpace(body.Context) == "" {
		body.Context = "web"
	}

	if err := s.store.RecordUsage(r.Context(), id, body.Context, body.Helpful, body.Notes); err != nil {
		if errors.Is(err, kb.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.fail(w, "record usage", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tags, err := s.store.AllTags(r.Context())
	if err != nil {
		s.fail(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, err := s.store.Export(r.Context())
	if err != nil {
		s.fail(w, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.Error("api request failed", "op", op, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// splitParam accepts both repeated query params and comma-separated values.
func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
