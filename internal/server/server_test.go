package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/core/coretest"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg config.ServeSettings, entries ...Entry) *Server {
	t.Helper()
	s, err := New(cfg, entries, logger.Discard(), nil)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{})
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListAndGetAgents(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{},
		Entry{ID: "web", Agent: coretest.NewAgent("Web Agent", "Searches the web")},
		Entry{ID: "travel_team", Kind: core.KindTeam, Agent: coretest.NewAgent("", "")},
	)

	rec := do(t, s, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []AgentInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Equal(t, []AgentInfo{
		{ID: "travel_team", Kind: core.KindTeam, Name: "Travel Team", Description: core.DefaultDescription},
		{ID: "web", Kind: core.KindAgent, Name: "Web Agent", Description: "Searches the web"},
	}, infos)

	rec = do(t, s, http.MethodGet, "/api/agents/web", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Web Agent"`)

	rec = do(t, s, http.MethodGet, "/api/agents/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"agent not found"}`, rec.Body.String())
}

func TestListAgents_ConcurrentReads(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{},
		Entry{ID: "finance_agent_helper", Agent: coretest.NewAgent("", "")},
		Entry{ID: "travel_team", Kind: core.KindTeam, Agent: coretest.NewAgent("", "")},
	)

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				for _, path := range []string{"/api/agents", "/api/agents/finance_agent_helper"} {
					rec := httptest.NewRecorder()
					s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
					if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Finance Agent Helper") {
						failed.Add(1)
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, failed.Load())
}

func TestRun(t *testing.T) {
	agent := coretest.NewAgent("Finance Agent", "")
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "finance", Agent: agent})

	rec := do(t, s, http.MethodPost, "/api/agents/finance/runs", `{"message":"AAPL price?","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Finance Agent", resp.Agent)
	assert.Equal(t, "echo: AAPL price?", resp.Content)
	assert.NotEmpty(t, resp.SessionID, "a session is started when none is given")

	rec = do(t, s, http.MethodPost, "/api/agents/finance/runs", `{"message":"again","session_id":"`+resp.SessionID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	in := agent.Inputs()
	require.Len(t, in, 2)
	assert.Equal(t, "u1", in[0].UserID)
	assert.Equal(t, in[0].SessionID, in[1].SessionID)
}

func TestRun_Errors(t *testing.T) {
	failing := coretest.NewAgent("Broken", "")
	failing.Respond = func(core.Input) (string, error) { return "", errors.New("model unavailable") }
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "broken", Agent: failing})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		errMsg string
	}{
		{"unknown agent", "/api/agents/nope/runs", `{"message":"hi"}`, http.StatusNotFound, "agent not found"},
		{"bad json", "/api/agents/broken/runs", `{`, http.StatusBadRequest, "invalid request body"},
		{"empty message", "/api/agents/broken/runs", `{"message":"  "}`, http.StatusBadRequest, "message is required"},
		{"agent error", "/api/agents/broken/runs", `{"message":"hi"}`, http.StatusInternalServerError, "model unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, tt.errMsg, er.Error)
		})
	}
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	return events
}

func TestRun_Stream(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "web", Agent: coretest.NewStreamingAgent("Web", "")})

	rec := do(t, s, http.MethodPost, "/api/agents/web/runs", `{"message":"two words","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 4)

	var fragments []string
	for _, ev := range events[:3] {
		assert.Empty(t, ev.name)
		var chunk StreamChunk
		require.NoError(t, json.Unmarshal([]byte(ev.data), &chunk))
		fragments = append(fragments, chunk.Content)
	}
	assert.Equal(t, []string{"echo: ", "two ", "words"}, fragments)

	done := events[3]
	assert.Equal(t, "done", done.name)
	var resp RunResponse
	require.NoError(t, json.Unmarshal([]byte(done.data), &resp))
	assert.Equal(t, "echo: two words", resp.Content)
}

func TestRun_StreamNonStreamingAgent(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "plain", Agent: coretest.NewAgent("Plain", "")})

	rec := do(t, s, http.MethodPost, "/api/agents/plain/runs", `{"message":"hi","stream":true}`)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, `{"content":"echo: hi"}`, events[0].data)
	assert.Equal(t, "done", events[1].name)
}

func TestRun_StreamError(t *testing.T) {
	agent := coretest.NewStreamingAgent("Web", "")
	agent.Respond = func(core.Input) (string, error) { return "", errors.New("upstream closed") }
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "web", Agent: agent})

	rec := do(t, s, http.MethodPost, "/api/agents/web/runs", `{"message":"hi","stream":true}`)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data, "upstream closed")
}

func TestRun_SerializedPerAgent(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	slow := coretest.NewAgent("Slow", "")
	slow.Respond = func(in core.Input) (string, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "done", nil
	}
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "slow", Agent: slow})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := do(t, s, http.MethodPost, "/api/agents/slow/runs", `{"message":"go"}`)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Len(t, slow.Inputs(), 4)
}

func TestRun_WaitingRequestCancelled(t *testing.T) {
	release := make(chan struct{})
	blocking := coretest.NewAgent("Blocking", "")
	blocking.Respond = func(core.Input) (string, error) {
		<-release
		return "ok", nil
	}
	s := newTestServer(t, config.ServeSettings{}, Entry{ID: "b", Agent: blocking})

	first := make(chan int, 1)
	go func() {
		first <- do(t, s, http.MethodPost, "/api/agents/b/runs", `{"message":"one"}`).Code
	}()
	require.Eventually(t, func() bool { return len(blocking.Inputs()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/agents/b/runs", strings.NewReader(`{"message":"two"}`)).WithContext(ctx)
	abandoned := httptest.NewRecorder()
	s.Handler().ServeHTTP(abandoned, req)
	assert.Equal(t, http.StatusServiceUnavailable, abandoned.Code)
	assert.Contains(t, abandoned.Body.String(), "cancelled while waiting")

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Len(t, blocking.Inputs(), 1, "the abandoned request never reached the agent")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{RateLimit: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/agents", "").Code)
	rec := do(t, s, http.MethodGet, "/api/agents", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code, "health is never limited")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{AllowedOrigins: []string{"http://localhost:5173"}})

	rec := do(t, s, http.MethodGet, "/api/agents", "", "Origin", "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodGet, "/api/agents", "", "Origin", "http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodOptions, "/api/agents", "", "Origin", "http://localhost:5173")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodOptions, "/api/agents", "", "Origin", "http://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNew_RejectsBadEntries(t *testing.T) {
	_, err := New(config.ServeSettings{}, []Entry{{ID: "x"}}, nil, nil)
	require.ErrorIs(t, err, core.ErrNilAgent)

	a := coretest.NewAgent("A", "")
	_, err = New(config.ServeSettings{}, []Entry{{ID: "x", Agent: a}, {ID: "x", Agent: a}}, nil, nil)
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestBuildEntries(t *testing.T) {
	core.RegisterAgent("server_test_echo", func(context.Context, core.AgentBuilder) (core.Agent, error) {
		return coretest.NewAgent("Echo", ""), nil
	}, "Echo", "")

	entries, err := BuildEntries(context.Background(), nil, []string{"server_test_echo"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.KindAgent, entries[0].Kind)
	assert.Equal(t, "Echo", entries[0].Agent.Name())

	_, err = BuildEntries(context.Background(), nil, []string{"missing"})
	require.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRun_GracefulShutdown(t *testing.T) {
	s := newTestServer(t, config.ServeSettings{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
