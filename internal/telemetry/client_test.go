package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEnqueuer captures events for testing.
type mockEnqueuer struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed int
}

func (m *mockEnqueuer) Enqueue(msg posthog.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if capture, ok := msg.(posthog.Capture); ok {
		m.events = append(m.events, capture)
	}
	return nil
}

func (m *mockEnqueuer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockEnqueuer) getEvents() []posthog.Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]posthog.Capture(nil), m.events...)
}

func TestSink_Track(t *testing.T) {
	mock := &mockEnqueuer{}
	client := newSink(mock, "anon-1", "1.2.3")

	client.Track(EventConsoleStart, Properties{"agents": 18, "os": "spoofed"})

	events := mock.getEvents()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "anon-1", ev.DistinctId)
	assert.Equal(t, EventConsoleStart, ev.Event)
	assert.Equal(t, 18, ev.Properties["agents"])
	assert.Equal(t, runtime.GOOS, ev.Properties["os"], "base properties win")
	assert.Equal(t, "1.2.3", ev.Properties["version"])
	assert.Equal(t, false, ev.Properties["$process_person_profile"])
}

func TestSink_CloseOnce(t *testing.T) {
	mock := &mockEnqueuer{}
	client := newSink(mock, "anon", "dev")

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	client.Track(EventAgentRun, nil)

	assert.Empty(t, mock.getEvents())
	assert.Equal(t, 1, mock.closed)
}

func TestNew_NoopWithoutKeyOrConsent(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
	}{
		{"no api key", ClientConfig{Config: &Config{Enabled: true}}},
		{"not enabled", ClientConfig{APIKey: "phc_test", Config: &Config{Enabled: false}}},
		{"no install config", ClientConfig{APIKey: "phc_test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, NoopClient{}, c)
		})
	}
}

func TestRun_Event(t *testing.T) {
	name, props := Run{Surface: SurfaceHTTP, Agent: "finance", Duration: 1500 * time.Millisecond, Streamed: true}.Event()
	assert.Equal(t, EventAgentRun, name)
	assert.Equal(t, Properties{
		"agent":       "finance",
		"surface":     SurfaceHTTP,
		"duration_ms": int64(1500),
		"streamed":    true,
		"success":     true,
	}, props)

	name, props = Run{Surface: SurfaceConsole, Agent: "web", Err: errors.New("secret user text")}.Event()
	assert.Equal(t, EventAgentError, name)
	assert.Equal(t, false, props["success"])
	for _, v := range props {
		assert.NotEqual(t, "secret user text", v, "error text may contain user input")
	}
}

func TestTrackRun(t *testing.T) {
	mock := &mockEnqueuer{}
	client := newSink(mock, "a", "dev")

	TrackRun(client, SurfaceHTTP, "finance", 1500*time.Millisecond, true, nil)
	TrackRun(client, SurfaceConsole, "web", time.Second, false, errors.New("boom"))
	TrackRun(nil, SurfaceCLI, "x", 0, false, nil)

	events := mock.getEvents()
	require.Len(t, events, 2)
	assert.Equal(t, EventAgentRun, events[0].Event)
	assert.Equal(t, int64(1500), events[0].Properties["duration_ms"])
	assert.Equal(t, EventAgentError, events[1].Event)
	assert.Equal(t, "web", events[1].Properties["agent"])
}

func TestLoad_PersistsAnonymousID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := Load(dir, true)
	require.NoError(t, err)
	assert.True(t, first.IsEnabled())
	assert.NotEmpty(t, first.AnonymousID)

	second, err := Load(dir, false)
	require.NoError(t, err)
	assert.False(t, second.IsEnabled())
	assert.Equal(t, first.AnonymousID, second.AnonymousID)

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{"), 0o600))
	_, err := Load(dir, true)
	require.Error(t, err)
}

func TestConfig_NilIsDisabled(t *testing.T) {
	var c *Config
	assert.False(t, c.IsEnabled())
}
