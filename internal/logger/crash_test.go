package logger

import (
	"os"
	"strings"
	"testing"
	"time"
)

func resetCrashState(t *testing.T) {
	t.Helper()
	state = &crashState{}
	SetBasePath(t.TempDir())
	t.Cleanup(func() { state = &crashState{} })
}

func TestSetLastInput_Truncation(t *testing.T) {
	resetCrashState(t)

	SetLastInput(strings.Repeat("a", 2000))

	state.mu.RLock()
	defer state.mu.RUnlock()
	if len(state.lastInput) > maxInputLen+20 {
		t.Errorf("expected input to be truncated, got length %d", len(state.lastInput))
	}
	if !strings.HasSuffix(state.lastInput, "[truncated]") {
		t.Error("expected truncated input to end with '[truncated]'")
	}
}

func TestWriteCrashLog(t *testing.T) {
	resetCrashState(t)
	SetVersion("1.2.3")
	SetCommand("run")
	SetAgent("finance_agent")
	SetLastInput("price of NVDA")

	path, err := WriteCrashLog(newCrashLog("boom", []byte("goroutine 1 [running]")))
	if err != nil {
		t.Fatalf("WriteCrashLog: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crash log: %v", err)
	}
	content := string(data)
	for _, want := range []string{"version: 1.2.3", "command: run", "agent:   finance_agent", "input:   price of NVDA", "panic: boom", "goroutine 1"} {
		if !strings.Contains(content, want) {
			t.Errorf("crash log missing %q:\n%s", want, content)
		}
	}
}

func TestWriteCrashLog_Prunes(t *testing.T) {
	resetCrashState(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < MaxCrashLogs+3; i++ {
		log := CrashLog{Timestamp: base.Add(time.Duration(i) * time.Second), PanicValue: "x"}
		if _, err := WriteCrashLog(log); err != nil {
			t.Fatalf("WriteCrashLog %d: %v", i, err)
		}
	}

	logs, err := ListCrashLogs()
	if err != nil {
		t.Fatalf("ListCrashLogs: %v", err)
	}
	if len(logs) != MaxCrashLogs {
		t.Fatalf("expected %d crash logs, got %d", MaxCrashLogs, len(logs))
	}
	if !strings.Contains(logs[len(logs)-1], "20260102_030417") {
		t.Errorf("newest crash log should survive pruning, got %v", logs[len(logs)-1])
	}
}
