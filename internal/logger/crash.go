package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the directory for crash logs under the data dir.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is the maximum number of crash logs to keep.
	MaxCrashLogs = 10

	maxInputLen = 500
)

// crashState is what the CLI knows about the work in progress when it panics.
type crashState struct {
	mu        sync.RWMutex
	basePath  string
	version   string
	command   string
	agent     string
	lastInput string
}

var state = &crashState{}

// SetBasePath sets the directory crash logs are written under.
func SetBasePath(path string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.basePath = path
}

// SetVersion records the build version.
func SetVersion(version string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.version = version
}

// SetCommand records the cobra command being executed.
func SetCommand(cmd string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.command = cmd
}

// SetAgent records the agent key handling the current query.
func SetAgent(key string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.agent = key
}

// SetLastInput records the last console or CLI query.
func SetLastInput(input string) {
	input = strings.TrimSpace(input)
	if len(input) > maxInputLen {
		input = input[:maxInputLen] + "... [truncated]"
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.lastInput = input
}

// CrashLog is one recovered panic.
type CrashLog struct {
	Timestamp  time.Time
	Version    string
	Command    string
	Agent      string
	LastInput  string
	PanicValue string
	StackTrace string
}

// HandlePanic recovers a panic, writes a crash log and exits with status 1.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	log := newCrashLog(r, debug.Stack())
	path, err := WriteCrashLog(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] could not write crash log: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] panic: %v\n%s\n", r, log.StackTrace)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\n🔴 agentdeck hit an unexpected error.\nCrash log: %s\n", path)
	os.Exit(1)
}

func newCrashLog(panicValue any, stack []byte) CrashLog {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return CrashLog{
		Timestamp:  time.Now(),
		Version:    state.version,
		Command:    state.command,
		Agent:      state.agent,
		LastInput:  state.lastInput,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(stack),
	}
}

// WriteCrashLog writes log under the crash directory, pruning old files, and
// returns the written path.
func WriteCrashLog(log CrashLog) (string, error) {
	dir := crashLogDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	if err := pruneCrashLogs(dir, MaxCrashLogs-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] prune crash logs: %v\n", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", log.Timestamp.Format("20060102_150405.000")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	defer f.Close()
	if err := formatCrashLog(f, log); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	return path, nil
}

func crashLogDir() string {
	state.mu.RLock()
	base := state.basePath
	state.mu.RUnlock()
	if base == "" {
		base = ".agentdeck"
	}
	return filepath.Join(base, CrashLogDir)
}

func formatCrashLog(w io.Writer, log CrashLog) error {
	rule := strings.Repeat("-", 72)
	var sb strings.Builder
	fmt.Fprintf(&sb, "agentdeck crash %s\n%s\n", log.Timestamp.Format(time.RFC3339), rule)
	fmt.Fprintf(&sb, "version: %s\ncommand: %s\n", log.Version, log.Command)
	if log.Agent != "" {
		fmt.Fprintf(&sb, "agent:   %s\n", log.Agent)
	}
	fmt.Fprintf(&sb, "go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if log.LastInput != "" {
		fmt.Fprintf(&sb, "input:   %s\n", log.LastInput)
	}
	fmt.Fprintf(&sb, "%s\npanic: %s\n%s\n%s", rule, log.PanicValue, rule, log.StackTrace)
	_, err := io.WriteString(w, sb.String())
	return err
}

// pruneCrashLogs keeps at most keep crash logs, removing the oldest first.
func pruneCrashLogs(dir string, keep int) error {
	logs, err := listCrashLogs(dir)
	if err != nil {
		return err
	}
	for i := 0; i < len(logs)-keep; i++ {
		if err := os.Remove(logs[i]); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(logs[i]), err)
		}
	}
	return nil
}

// ListCrashLogs returns crash log paths, oldest first.
func ListCrashLogs() ([]string, error) {
	return listCrashLogs(crashLogDir())
}

func listCrashLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var logs []string
	// os.ReadDir sorts by name and names embed the timestamp.
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	return logs, nil
}
