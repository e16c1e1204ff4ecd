package impl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/core/coretest"
	"github.com/agentdeck/agentdeck/internal/llm/llmtest"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leaderReplies answers delegation prompts with plan, routing prompts with
// route and everything else with a synthesis that lists the member sections.
func leaderReplies(plan, route string) func([]*schema.Message) string {
	return func(msgs []*schema.Message) string {
		sys := msgs[0].Content
		switch {
		case strings.Contains(sys, "Reply with JSON only"):
			return plan
		case strings.Contains(sys, "Reply with only the name"):
			return route
		default:
			var heads []string
			for _, line := range strings.Split(msgs[len(msgs)-1].Content, "\n") {
				if strings.HasPrefix(line, "### ") {
					heads = append(heads, strings.TrimPrefix(line, "### "))
				}
			}
			return "combined: " + strings.Join(heads, ", ")
		}
	}
}

func newTeam(t *testing.T, spec core.TeamSpec, leader *llmtest.FakeModel, members ...core.Agent) *TeamAgent {
	t.Helper()
	c := newTestConstructor(t, leader, nil)
	team, err := c.NewTeamAgent(context.Background(), spec, members)
	require.NoError(t, err)
	return team
}

func TestTeam_Coordinate(t *testing.T) {
	finder := coretest.NewAgent("Destination Finder", "Finds places")
	planner := coretest.NewAgent("Itinerary Planner", "Plans days")
	leader := &llmtest.FakeModel{Reply: leaderReplies(
		"Here is the plan:\n```json\n"+`{"tasks":[{"member":"destination finder","task":"pick a city"},{"member":"Nobody","task":"x"},{"member":"Itinerary Planner","task":"plan 3 days"}]}`+"\n```",
		"")}
	team := newTeam(t, core.TeamSpec{Name: "Travel Team", ShowMemberResponses: true, SuccessCriteria: "a full plan"}, leader, finder, planner)
	assert.Equal(t, core.ModeCoordinate, team.Mode())

	out, err := team.Run(context.Background(), core.Input{Query: "Trip to Italy", SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "combined: Destination Finder, Itinerary Planner", out.Content)
	assert.Equal(t, "Travel Team", out.AgentName)
	assert.Equal(t, []core.MemberResponse{
		{Member: "Destination Finder", Content: "echo: pick a city"},
		{Member: "Itinerary Planner", Content: "echo: plan 3 days"},
	}, out.Members)

	in := finder.Inputs()
	require.Len(t, in, 1)
	assert.Equal(t, "s1:destination_finder", in[0].SessionID)
	assert.Equal(t, "u1", in[0].UserID)
	assert.Contains(t, leader.LastPrompt(), "The answer is complete when: a full plan")
}

func TestTeam_CoordinateUnusablePlanDelegatesToAll(t *testing.T) {
	a := coretest.NewAgent("A", "")
	b := coretest.NewAgent("B", "")
	leader := &llmtest.FakeModel{Reply: leaderReplies("I cannot produce JSON", "")}
	team := newTeam(t, core.TeamSpec{Name: "T", Mode: core.ModeCoordinate}, leader, a, b)

	out, err := team.Run(context.Background(), core.Input{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "combined: A, B", out.Content)
	assert.Empty(t, out.Members, "member responses hidden unless requested")
	assert.Equal(t, "q", a.Inputs()[0].Query)
	assert.Equal(t, "q", b.Inputs()[0].Query)
}

func TestTeam_Route(t *testing.T) {
	en := coretest.NewAgent("English Agent", "Answers in English")
	fr := coretest.NewAgent("French Agent", "Answers in French")
	fr.Respond = func(in core.Input) (string, error) { return "Bonjour", nil }
	leader := &llmtest.FakeModel{Reply: leaderReplies("", "**French Agent**")}
	team := newTeam(t, core.TeamSpec{Name: "Language Router", Mode: core.ModeRoute, ShowMemberResponses: true}, leader, en, fr)

	out, err := team.Run(context.Background(), core.Input{Query: "Salut"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out.Content)
	assert.Equal(t, []core.MemberResponse{{Member: "French Agent", Content: "Bonjour"}}, out.Members)
	assert.Empty(t, en.Inputs())
	assert.Equal(t, 1, leader.CallCount(), "route answers without a synthesis call")
}

func TestTeam_RouteFallsBackToFirstMember(t *testing.T) {
	first := coretest.NewAgent("First", "")
	second := coretest.NewAgent("Second", "")
	leader := &llmtest.FakeModel{Reply: leaderReplies("", "nobody fits")}
	team := newTeam(t, core.TeamSpec{Name: "R", Mode: core.ModeRoute}, leader, first, second)

	out, err := team.Run(context.Background(), core.Input{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "echo: q", out.Content)
	assert.Len(t, first.Inputs(), 1)
}

func TestTeam_Collaborate(t *testing.T) {
	a := coretest.NewAgent("Optimist", "")
	b := coretest.NewAgent("Skeptic", "")
	b.Respond = func(in core.Input) (string, error) { return "", errors.New("rate limited") }
	leader := &llmtest.FakeModel{Reply: leaderReplies("", "")}
	team := newTeam(t, core.TeamSpec{Name: "Debate", Mode: core.ModeCollaborate, ShowMemberResponses: true}, leader, a, b)

	out, err := team.Run(context.Background(), core.Input{Query: "Is Go fun?"})
	require.NoError(t, err)
	assert.Equal(t, "combined: Optimist, Skeptic", out.Content)
	require.Len(t, out.Members, 2)
	assert.Equal(t, "echo: Is Go fun?", out.Members[0].Content)
	assert.Equal(t, "error: rate limited", out.Members[1].Content)
}

func TestTeam_EveryMemberFailing(t *testing.T) {
	a := coretest.NewAgent("A", "")
	a.Respond = func(in core.Input) (string, error) { return "", errors.New("down") }
	leader := &llmtest.FakeModel{Reply: leaderReplies("", "")}
	team := newTeam(t, core.TeamSpec{Name: "T", Mode: core.ModeCollaborate}, leader, a)

	_, err := team.Run(context.Background(), core.Input{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every member failed")
}

func TestTeam_Stream(t *testing.T) {
	a := coretest.NewAgent("A", "")
	leader := &llmtest.FakeModel{Reply: leaderReplies("{}", "")}
	team := newTeam(t, core.TeamSpec{Name: "T", Stream: true}, leader, a)
	assert.True(t, team.Traits().Stream)

	var fragments []string
	out, err := core.RunStreaming(context.Background(), team, core.Input{Query: "q"}, func(s string) {
		fragments = append(fragments, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "combined: A", out.Content)
	assert.Equal(t, []string{"combined: ", "A"}, fragments)
}

func TestTeam_RouteStreamsMember(t *testing.T) {
	member := coretest.NewStreamingAgent("Writer", "")
	leader := &llmtest.FakeModel{Reply: leaderReplies("", "Writer")}
	team := newTeam(t, core.TeamSpec{Name: "T", Mode: core.ModeRoute}, leader, member)

	sr, err := team.Stream(context.Background(), core.Input{Query: "two words"})
	require.NoError(t, err)
	content, err := core.Collect(sr)
	require.NoError(t, err)
	assert.Equal(t, "echo: two words", content)
}

func TestNewTeamAgent_Validation(t *testing.T) {
	c := newTestConstructor(t, llmtest.NewFakeModel("x"), nil)
	_, err := c.NewTeamAgent(context.Background(), core.TeamSpec{Name: "Empty"}, nil)
	require.Error(t, err)

	_, err = c.BuildTeam(context.Background(), core.TeamSpec{Name: "Nil"}, []core.Agent{nil})
	require.ErrorIs(t, err, core.ErrNilAgent)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("text {\"a\":1} more"))
	assert.Equal(t, "", extractJSON("no json"))
	assert.Equal(t, "", extractJSON("} {"))
}
