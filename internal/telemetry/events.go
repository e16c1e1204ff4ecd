package telemetry

import "time"

// Event names.
const (
	EventAgentRun     = "agent_run"
	EventAgentError   = "agent_error"
	EventConsoleStart = "console_start"
	EventServeStart   = "serve_start"
)

// Surfaces an agent run can come from.
const (
	SurfaceConsole = "console"
	SurfaceCLI     = "cli"
	SurfaceHTTP    = "http"
)

// Run is one finished agent run. Only the agent key, surface, timing and
// outcome are reported, never the query, the reply or the error text.
type Run struct {
	Surface  string
	Agent    string
	Duration time.Duration
	Streamed bool
	Err      error
}

// Event returns the event name and properties for r. Failed runs are
// reported as EventAgentError.
func (r Run) Event() (string, Properties) {
	props := Properties{
		"agent":       r.Agent,
		"surface":     r.Surface,
		"duration_ms": r.Duration.Milliseconds(),
		"streamed":    r.Streamed,
		"success":     r.Err == nil,
	}
	if r.Err != nil {
		return EventAgentError, props
	}
	return EventAgentRun, props
}

// TrackRun reports one run on c. A nil c is ignored.
func TrackRun(c Client, surface, key string, d time.Duration, streamed bool, err error) {
	if c == nil {
		return
	}
	c.Track(Run{Surface: surface, Agent: key, Duration: d, Streamed: streamed, Err: err}.Event())
}
