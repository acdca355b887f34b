package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/pipeline"
	"github.com/haasonsaas/nexus/internal/pipeline/checkpoint"
)

// serveOptions collects the resolved flags buildServeCmd hands to runServe.
type serveOptions struct {
	configPath string
	host       string
	port       int
	provider   string
	dryRun     bool
}

// runSession tracks one in-flight or finished pipeline run started by the
// serve command's /runs endpoint: its buffered events for late subscribers
// and its live subscriber set for websocket fan-out.
type runSession struct {
	id string

	mu     sync.Mutex
	events []pipeline.Event
	subs   map[chan pipeline.Event]struct{}

	done   chan struct{}
	result string // outcome status, set once the run finishes
	runErr error
}

func newRunSession(id string) *runSession {
	return &runSession{id: id, subs: map[chan pipeline.Event]struct{}{}, done: make(chan struct{})}
}

func (s *runSession) publish(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe registers ch for future events and returns every event
// already recorded so a client connecting mid-run doesn't miss history.
func (s *runSession) subscribe() (chan pipeline.Event, []pipeline.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan pipeline.Event, 64)
	s.subs[ch] = struct{}{}
	buffered := append([]pipeline.Event(nil), s.events...)
	return ch, buffered, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

func (s *runSession) finish(result string, err error) {
	s.mu.Lock()
	s.result = result
	s.runErr = err
	for ch := range s.subs {
		close(ch)
	}
	s.subs = map[chan pipeline.Event]struct{}{}
	s.mu.Unlock()
	close(s.done)
}

// runRegistry is the server's in-memory table of runs started since boot.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*runSession
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: map[string]*runSession{}}
}

func (r *runRegistry) add(s *runSession) {
	r.mu.Lock()
	r.runs[s.id] = s
	r.mu.Unlock()
}

func (r *runRegistry) get(id string) (*runSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[id]
	return s, ok
}

// startRunRequest is the POST /runs request body.
type startRunRequest struct {
	Graph      string `json:"graph"`
	Checkpoint string `json:"checkpoint,omitempty"`
	Provider   string `json:"provider,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// server bundles everything runServe's HTTP handlers close over: the
// live config (swapped on fsnotify reload), the run registry, and the
// CLI-level defaults a request can omit.
type server struct {
	cfg         atomic.Pointer[config.Config]
	runs        *runRegistry
	defaultProv string
	defaultDry  bool
	upgrader    websocket.Upgrader
}

func newServer(cfg *config.Config, opts serveOptions) *server {
	s := &server{
		runs:        newRunRegistry(),
		defaultProv: opts.provider,
		defaultDry:  opts.dryRun,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.cfg.Store(cfg)
	return s
}

func (s *server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Graph == "" {
		http.Error(w, "graph is required", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		req.Provider = s.defaultProv
	}

	id := uuid.NewString()
	session := newRunSession(id)
	s.runs.add(session)

	go s.executeRun(session, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (s *server) executeRun(session *runSession, req startRunRequest) {
	cfg := s.cfg.Load()
	dryRun := req.DryRun || s.defaultDry

	g, err := loadAndPrepareGraph(req.Graph)
	if err != nil {
		session.finish("", fmt.Errorf("load graph: %w", err))
		return
	}

	eng, err := buildPipelineEngine(cfg, req.Provider, dryRun, true, defaultPipelineLogsRoot(req.Graph), 0, session.publish)
	if err != nil {
		session.finish("", fmt.Errorf("build engine: %w", err))
		return
	}

	var cp *checkpoint.Checkpoint
	if req.Checkpoint != "" {
		cp, err = checkpoint.Load(req.Checkpoint)
		if err != nil {
			session.finish("", fmt.Errorf("load checkpoint: %w", err))
			return
		}
	}

	o, err := eng.Run(context.Background(), g, cp)
	if err != nil {
		session.finish(string(o.Status), err)
		return
	}
	session.finish(string(o.Status), nil)
}

func (s *server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, ok := s.runs.get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "run", id, "error", err)
		return
	}
	defer conn.Close()

	ch, buffered, unsubscribe := session.subscribe()
	defer unsubscribe()

	for _, ev := range buffered {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteJSON(map[string]string{"kind": "stream.closed"})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-session.done:
			return
		}
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// buildCronSchedule registers one cron.Cron entry per cfg.Schedule item,
// each starting a pipeline run for its graph the same way POST /runs
// does, logging the outcome instead of streaming it anywhere.
func buildCronSchedule(s *server, cfg *config.Config) *cron.Cron {
	c := cron.New()
	for _, sched := range cfg.Schedule {
		sched := sched
		_, err := c.AddFunc(sched.Cron, func() {
			id := uuid.NewString()
			session := newRunSession(id)
			s.runs.add(session)
			slog.Info("scheduled pipeline run starting", "schedule", sched.ID, "run", id, "graph", sched.GraphPath)
			s.executeRun(session, startRunRequest{Graph: sched.GraphPath, Provider: sched.Provider, DryRun: s.defaultDry})
			<-session.done
			if session.runErr != nil {
				slog.Error("scheduled pipeline run failed", "schedule", sched.ID, "run", id, "error", session.runErr)
				return
			}
			slog.Info("scheduled pipeline run finished", "schedule", sched.ID, "run", id, "status", session.result)
		})
		if err != nil {
			slog.Error("failed to register schedule", "schedule", sched.ID, "cron", sched.Cron, "error", err)
			continue
		}
	}
	return c
}

// watchConfig watches configPath's directory for writes to the config
// file and swaps in the newly loaded config plus a rebuilt cron
// schedule. It runs until ctx is canceled.
func watchConfig(ctx context.Context, s *server, configPath string, cronRef *atomic.Pointer[cron.Cron]) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watch disabled", "error", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		slog.Warn("config watch disabled", "dir", dir, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(configPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				slog.Error("config reload failed, keeping previous config", "error", err)
				continue
			}
			s.cfg.Store(cfg)
			if prev := cronRef.Load(); prev != nil {
				prev.Stop()
			}
			next := buildCronSchedule(s, cfg)
			next.Start()
			cronRef.Store(next)
			slog.Info("config reloaded", "path", configPath, "schedules", len(cfg.Schedule))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch error", "error", err)
		}
	}
}

// runServe implements the serve command: it loads the config, starts an
// HTTP facade for ad hoc runs, registers cron jobs for config.schedule
// entries, watches the config file for hot reload, and shuts down
// gracefully on SIGINT/SIGTERM.
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	host := opts.host
	if host == "" {
		host = cfg.Server.Host
	}
	port := opts.port
	if port == 0 {
		port = cfg.Server.Port
	}

	srv := newServer(cfg, opts)

	var cronRef atomic.Pointer[cron.Cron]
	c := buildCronSchedule(srv, cfg)
	c.Start()
	cronRef.Store(c)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go watchConfig(ctx, srv, opts.configPath, &cronRef)

	addr := host + ":" + strconv.Itoa(port)
	httpServer := &http.Server{Addr: addr, Handler: srv.mux()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("pipeline server listening", "addr", addr, "schedules", len(cfg.Schedule))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if prev := cronRef.Load(); prev != nil {
		stopCtx := prev.Stop()
		<-stopCtx.Done()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("pipeline server stopped gracefully")
	return nil
}
