/*
Package server exposes a fixed list of compiled-in agents over HTTP.

The list is built once from the builtin manifest; discovered packages are not
served. Requests to the same agent are handled one at a time.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/telemetry"
	"golang.org/x/time/rate"
)

// ShutdownTimeout bounds how long in-flight requests may finish after Run's
// context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Entry is one served agent.
type Entry struct {
	ID    string
	Kind  string // core.KindAgent or core.KindTeam
	Agent core.Agent
}

// slot guards one entry. The buffered channel is a mutex that a waiting
// request can abandon when its context ends.
type slot struct {
	Entry
	info AgentInfo
	busy chan struct{}
}

func (s *slot) acquire(ctx context.Context) error {
	select {
	case s.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slot) release() { <-s.busy }

// Server is the HTTP façade.
type Server struct {
	cfg       config.ServeSettings
	log       *slog.Logger
	telemetry telemetry.Client
	limiter   *rate.Limiter
	origins   map[string]struct{}
	order     []string
	slots     map[string]*slot
	handler   http.Handler
}

// New creates a server over entries. Entry IDs must be unique and every
// entry must carry an agent.
func New(cfg config.ServeSettings, entries []Entry, log *slog.Logger, tc telemetry.Client) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if tc == nil {
		tc = telemetry.NoopClient{}
	}
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		telemetry: tc,
		origins:   make(map[string]struct{}, len(cfg.AllowedOrigins)),
		slots:     make(map[string]*slot, len(entries)),
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = struct{}{}
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, e := range entries {
		if e.Agent == nil {
			return nil, fmt.Errorf("%w: %s", core.ErrNilAgent, e.ID)
		}
		if _, dup := s.slots[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateKey, e.ID)
		}
		if e.Kind == "" {
			e.Kind = core.KindAgent
		}
		d := core.Describe(e.ID, e.Agent, core.SourceBuiltin, nil)
		s.slots[e.ID] = &slot{
			Entry: e,
			info:  AgentInfo{ID: e.ID, Kind: e.Kind, Name: d.Name, Description: d.Description},
			busy:  make(chan struct{}, 1),
		}
		s.order = append(s.order, e.ID)
	}
	slices.Sort(s.order)

	s.handler = s.registerRoutes()
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving agents", "addr", s.cfg.Addr, "agents", len(s.order))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// BuildEntries instantiates the builtin manifest. When ids is non-empty only
// those entries are built, in manifest order; an unknown id is an error.
func BuildEntries(ctx context.Context, ab core.AgentBuilder, ids []string) ([]Entry, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := core.GetManifestEntry(id); !ok {
			return nil, fmt.Errorf("serve agent %q: %w", id, core.ErrAgentNotFound)
		}
		want[id] = true
	}

	var entries []Entry
	for _, m := range core.Manifest() {
		if len(want) > 0 && !want[m.ID] {
			continue
		}
		a, err := m.Instantiate(ctx, ab)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: m.ID, Kind: m.Kind, Agent: a})
	}
	return entries, nil
}
