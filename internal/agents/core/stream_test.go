package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/core/coretest"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	got, err := core.Collect(schema.StreamReaderFromArray([]string{"a ", "b ", "c"}))
	require.NoError(t, err)
	assert.Equal(t, "a b c", got)
}

func TestDrain_PropagatesError(t *testing.T) {
	sr, sw := schema.Pipe[string](2)
	go func() {
		defer sw.Close()
		sw.Send("partial", nil)
		sw.Send("", errors.New("connection reset"))
	}()

	var seen []string
	got, err := core.Drain(sr, func(s string) { seen = append(seen, s) })
	require.Error(t, err)
	assert.Equal(t, "partial", got)
	assert.Equal(t, []string{"partial"}, seen)
}

func TestRunStreaming_MatchesRun(t *testing.T) {
	ctx := context.Background()
	in := core.Input{Query: "tell me about streams", SessionID: "s1"}

	streaming := coretest.NewStreamingAgent("S", "")
	var fragments []string
	streamed, err := core.RunStreaming(ctx, streaming, in, func(s string) { fragments = append(fragments, s) })
	require.NoError(t, err)

	ran, err := streaming.Run(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, ran.Content, streamed.Content)
	assert.Greater(t, len(fragments), 1)
	assert.Equal(t, "s1", streamed.SessionID)
}

func TestRunStreaming_FallsBackToRun(t *testing.T) {
	plain := coretest.NewAgent("P", "")
	var fragments []string
	out, err := core.RunStreaming(context.Background(), plain, core.Input{Query: "hi"}, func(s string) { fragments = append(fragments, s) })
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out.Content)
	assert.Equal(t, []string{"echo: hi"}, fragments)
}
