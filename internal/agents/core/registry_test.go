package core_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/core/coretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_FirstKeyWins(t *testing.T) {
	b := core.NewBuilder()
	first := coretest.NewAgent("First", "")
	second := coretest.NewAgent("Second", "")

	require.NoError(t, b.Add(core.Describe("dup", first, "pkg_a.dup", nil)))
	err := b.Add(core.Describe("dup", second, "pkg_b.dup", nil))
	require.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "pkg_a.dup")

	reg := b.Build()
	d, ok := reg.Get("dup")
	require.True(t, ok)
	assert.Same(t, first, d.Agent)
	assert.Equal(t, 1, reg.Len())
}

func TestBuilder_RejectsNilAgent(t *testing.T) {
	b := core.NewBuilder()
	err := b.Add(core.Describe("empty", nil, "x", nil))
	assert.ErrorIs(t, err, core.ErrNilAgent)
	assert.False(t, b.Has("empty"))
}

func TestRegistry_IsSnapshot(t *testing.T) {
	b := core.NewBuilder()
	require.NoError(t, b.Add(core.Describe("a", coretest.NewAgent("A", ""), "a", nil)))
	reg := b.Build()

	require.NoError(t, b.Add(core.Describe("b", coretest.NewAgent("B", ""), "b", nil)))
	assert.Equal(t, 1, reg.Len(), "built registry must not observe later additions")
	assert.Equal(t, 2, b.Build().Len())
}

func TestRegistry_SortedAndOrdered(t *testing.T) {
	b := core.NewBuilder()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, b.Add(core.Describe(k, coretest.NewAgent("", ""), k, nil)))
	}
	reg := b.Build()

	assert.Equal(t, []string{"a", "b", "c"}, reg.Keys())
	assert.Equal(t, []string{"c", "a", "b"}, reg.Order())

	var keys []string
	for _, d := range reg.Descriptors() {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	_, err := reg.Lookup("missing")
	assert.True(t, errors.Is(err, core.ErrAgentNotFound))
}

type stubBuilder struct{}

func (stubBuilder) BuildAgent(ctx context.Context, spec core.AgentSpec) (core.Agent, error) {
	return coretest.NewAgent(spec.Name, spec.Description), nil
}

func (stubBuilder) BuildTeam(ctx context.Context, spec core.TeamSpec, members []core.Agent) (core.Agent, error) {
	return coretest.NewAgent(spec.Name, spec.Description), nil
}

func TestAddBuiltins(t *testing.T) {
	core.RegisterAgent("zz_ok", func(ctx context.Context, b core.AgentBuilder) (core.Agent, error) {
		return b.BuildAgent(ctx, core.AgentSpec{Name: "Ok Agent"})
	}, "Ok Agent", "", "hello?")
	core.RegisterAgent("zz_broken", func(ctx context.Context, b core.AgentBuilder) (core.Agent, error) {
		return nil, errors.New("no credentials")
	}, "Broken", "")

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	b := core.NewBuilder()

	added := core.AddBuiltins(context.Background(), b, stubBuilder{}, log)
	assert.Equal(t, 1, added)

	reg := b.Build()
	d, ok := reg.Get("zz_ok")
	require.True(t, ok)
	assert.Equal(t, "Ok Agent", d.Name)
	assert.Equal(t, core.SourceBuiltin, d.Source)
	assert.Equal(t, []string{"hello?"}, d.Examples)
	assert.Contains(t, logs.String(), "zz_broken")

	entry, ok := core.GetManifestEntry("zz_ok")
	require.True(t, ok)
	assert.Equal(t, core.KindAgent, entry.Kind)
}
