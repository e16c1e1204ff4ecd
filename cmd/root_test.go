package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/llm"
	"github.com/agentdeck/agentdeck/internal/llm/llmtest"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLI isolates the CLI from the host: fresh viper, temp home, data and
// working directories, an in-memory store and a fake chat model.
func setupCLI(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AGENTDECK_LLM_PROVIDER", "openai")
	t.Setenv("AGENTDECK_DATA_DIR", t.TempDir())
	t.Setenv("AGENTDECK_MEMORY_PATH", ":memory:")
	t.Setenv("AGENTDECK_LOG_LEVEL", "error")

	agentsDir := filepath.Join(t.TempDir(), "agents")
	t.Setenv("AGENTDECK_AGENTS_DIR", agentsDir)

	modelFactory = func(ctx context.Context, cfg llm.Config) (model.ToolCallingChatModel, error) {
		return llmtest.NewFakeModel("fake answer"), nil
	}
	t.Cleanup(func() { modelFactory = nil })
	return agentsDir
}

func writePackage(t *testing.T, dir, definition string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.yaml"), []byte("examples: [\"Say hi\"]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.yaml"), []byte(definition), 0o644))
}

func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	code = execute(context.Background(), root, args)
	return out.String(), errOut.String(), code
}

func TestRootCmd_Help(t *testing.T) {
	setupCLI(t)
	out, _, code := runCLI(t, "", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "agentdeck - a deck of LLM agents")
	assert.Contains(t, out, "Available Commands:")
	for _, sub := range []string{"run", "list", "serve", "doctor"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersion(t *testing.T) {
	assert.Equal(t, version, GetVersion())
}

func TestRun_DiscoveredAgent(t *testing.T) {
	agentsDir := setupCLI(t)
	writePackage(t, filepath.Join(agentsDir, "basic_agent"), "agents:\n  - name: Basic Agent\n    role: Friendly helper\n")

	out, errOut, code := runCLI(t, "", "run", "basic_agent", "hello", "there")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "fake answer\n", out)
}

func TestRun_JSON(t *testing.T) {
	setupCLI(t)

	out, errOut, code := runCLI(t, "", "run", "finance", "TSLA?", "--json")
	require.Equal(t, 0, code, errOut)

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "finance", res.Key)
	assert.Equal(t, "fake answer", res.Content)
	assert.NotEmpty(t, res.SessionID)
}

func TestRun_UnknownAgent(t *testing.T) {
	setupCLI(t)
	_, errOut, code := runCLI(t, "", "run", "nope", "hi")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "agent not found: nope")
}

func TestRun_MissingCredential(t *testing.T) {
	setupCLI(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, errOut, code := runCLI(t, "", "run", "finance", "hi")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing required environment variables: OPENAI_API_KEY")
}

func TestRoot_DirectMode(t *testing.T) {
	setupCLI(t)

	out, errOut, code := runCLI(t, "", "-a", "research", "-q", "quantum computing")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "fake answer")

	_, errOut, code = runCLI(t, "", "-q", "orphan query")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--query requires --agent")
}

func TestRoot_Console(t *testing.T) {
	agentsDir := setupCLI(t)
	writePackage(t, filepath.Join(agentsDir, "basic_agent"), "agents:\n  - name: Basic Agent\n")

	out, errOut, code := runCLI(t, "bogus\nbasic_agent\nhi\nback\nexit\n")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Unknown agent or command: bogus")
	assert.Contains(t, out, "basic_agent")
	assert.Contains(t, out, "fake answer")
	assert.Contains(t, out, "Goodbye! 👋")
}

func TestList_JSON(t *testing.T) {
	agentsDir := setupCLI(t)
	writePackage(t, filepath.Join(agentsDir, "my_first_agents", "level2"), "agents:\n  - name: Level Two\n")
	writePackage(t, filepath.Join(agentsDir, "broken"), "agents: [\n")

	out, errOut, code := runCLI(t, "", "list", "--json")
	require.Equal(t, 0, code, errOut)

	var agents []agentSummary
	require.NoError(t, json.Unmarshal([]byte(out), &agents))

	byKey := make(map[string]agentSummary)
	var keys []string
	for _, a := range agents {
		byKey[a.Key] = a
		keys = append(keys, a.Key)
	}
	assert.IsIncreasing(t, keys)
	assert.Equal(t, "builtin", byKey["finance"].Source)
	assert.Equal(t, "my_first_agents.level2", byKey["level2"].Source)
	assert.Equal(t, []string{"Say hi"}, byKey["level2"].Examples)
	assert.NotContains(t, byKey, "broken")
}

func TestList_Table(t *testing.T) {
	setupCLI(t)
	out, _, code := runCLI(t, "", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "travel_team")
	assert.Contains(t, out, "Key")
}

func TestDoctor(t *testing.T) {
	agentsDir := setupCLI(t)
	writePackage(t, filepath.Join(agentsDir, "good"), "agents:\n  - name: Good\n")
	writePackage(t, filepath.Join(agentsDir, "bad_tools"), "agents:\n  - name: Bad\n    tools: [teleport]\n")

	out, errOut, code := runCLI(t, "", "doctor")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "✅ Configuration")
	assert.Contains(t, out, "Skipped packages:")
	assert.Contains(t, out, "bad_tools")
	assert.Contains(t, out, "unknown tool")
}

func TestDoctor_FailsWithoutCredential(t *testing.T) {
	setupCLI(t)
	t.Setenv("OPENAI_API_KEY", "")

	out, errOut, code := runCLI(t, "", "doctor", "--json")
	assert.Equal(t, 1, code)
	assert.Empty(t, errOut, "the report already explains the failure")

	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotEmpty(t, report.Checks)
	assert.Equal(t, statusFail, report.Checks[0].Status)
	assert.Contains(t, report.Checks[0].Message, "OPENAI_API_KEY")
}

func TestServe_UnknownAgent(t *testing.T) {
	setupCLI(t)
	_, errOut, code := runCLI(t, "", "serve", "--agents", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "agent not found")
}
