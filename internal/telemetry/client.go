package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client records usage events. Track never waits on the network.
type Client interface {
	Track(event string, properties Properties)
	Close() error
}

// Properties are the fields attached to one event.
type Properties = map[string]any

// ClientConfig selects and configures the PostHog backend.
type ClientConfig struct {
	APIKey   string
	Version  string
	Config   *Config
	Endpoint string // self-hosted PostHog; empty means PostHog cloud
}

// New returns a PostHog-backed client, or NoopClient when the install has
// not opted in or no API key is configured.
func New(cfg ClientConfig) (Client, error) {
	if cfg.APIKey == "" || !cfg.Config.IsEnabled() {
		return NoopClient{}, nil
	}

	ph, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint:  cfg.Endpoint,
		BatchSize: 10,
		Interval:  time.Second,
		Logger:    silentLogger{},
	})
	if err != nil {
		return nil, err
	}
	return newSink(ph, cfg.Config.AnonymousID, cfg.Version), nil
}

// queue is the part of the PostHog client the sink drives.
type queue interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// sink enqueues events under the install's anonymous ID. Every event carries
// the platform and agentdeck version; no person profile is ever created.
type sink struct {
	queue    queue
	distinct string
	base     Properties

	mu     sync.RWMutex
	closed bool
}

func newSink(q queue, anonymousID, version string) *sink {
	return &sink{
		queue:    q,
		distinct: anonymousID,
		base: Properties{
			"os":                      runtime.GOOS,
			"arch":                    runtime.GOARCH,
			"version":                 version,
			"$process_person_profile": false,
		},
	}
}

func (s *sink) Track(event string, properties Properties) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	for k, v := range s.base {
		props.Set(k, v)
	}
	_ = s.queue.Enqueue(posthog.Capture{DistinctId: s.distinct, Event: event, Properties: props})
}

// Close flushes queued events once; later events are dropped.
func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.queue.Close()
}

// NoopClient drops every event.
type NoopClient struct{}

func (NoopClient) Track(string, Properties) {}
func (NoopClient) Close() error             { return nil }

// silentLogger keeps PostHog transport warnings out of CLI output.
type silentLogger struct{}

func (silentLogger) Debugf(string, ...any) {}
func (silentLogger) Logf(string, ...any)   {}
func (silentLogger) Warnf(string, ...any)  {}
func (silentLogger) Errorf(string, ...any) {}

var (
	_ Client = (*sink)(nil)
	_ Client = NoopClient{}
)
