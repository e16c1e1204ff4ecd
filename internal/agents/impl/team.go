package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// TeamAgent answers through its members. A leader model delegates and
// combines according to the team mode:
//
//	coordinate   the leader assigns tasks to members, then synthesizes
//	route        the leader picks one member, whose answer is returned as is
//	collaborate  every member answers the query concurrently, the leader merges
type TeamAgent struct {
	core.BaseAgent
	spec    core.TeamSpec
	mode    string
	leader  model.ToolCallingChatModel
	members []core.Agent
	log     *slog.Logger
}

// Traits implements core.TraitsProvider.
func (t *TeamAgent) Traits() core.Traits {
	return core.Traits{Markdown: t.spec.Markdown, Stream: t.spec.Stream}
}

// Members returns the team's members.
func (t *TeamAgent) Members() []core.Agent { return t.members }

// Mode returns the team mode.
func (t *TeamAgent) Mode() string { return t.mode }

type delegation struct {
	Member string `json:"member"`
	Task   string `json:"task"`
}

// Run implements core.Agent.
func (t *TeamAgent) Run(ctx context.Context, in core.Input) (core.Output, error) {
	start := time.Now()
	if in.SessionID == "" {
		in.SessionID = uuid.New().String()
	}
	out := core.Output{AgentName: t.Name(), SessionID: in.SessionID, Markdown: t.spec.Markdown}

	if t.mode == core.ModeRoute {
		member, err := t.route(ctx, in.Query)
		if err != nil {
			return out, err
		}
		res, err := member.Run(ctx, t.memberInput(member, in, in.Query))
		if err != nil {
			return out, fmt.Errorf("%s: member %s: %w", t.Name(), member.Name(), err)
		}
		out.Content = res.Content
		out.Duration = time.Since(start)
		if t.spec.ShowMemberResponses {
			out.Members = []core.MemberResponse{{Member: member.Name(), Content: res.Content}}
		}
		return out, nil
	}

	responses, err := t.gather(ctx, in)
	if err != nil {
		return out, err
	}
	resp, err := t.leader.Generate(ctx, t.synthesisMessages(in.Query, responses))
	if err != nil {
		return out, fmt.Errorf("%s: synthesize: %w", t.Name(), err)
	}
	out.Content = resp.Content
	out.Duration = time.Since(start)
	if t.spec.ShowMemberResponses {
		out.Members = responses
	}
	return out, nil
}

// Stream implements core.Streamer. Member work happens before the first
// fragment; the leader's synthesis, or the routed member's answer, streams.
func (t *TeamAgent) Stream(ctx context.Context, in core.Input) (*schema.StreamReader[string], error) {
	if in.SessionID == "" {
		in.SessionID = uuid.New().String()
	}

	if t.mode == core.ModeRoute {
		member, err := t.route(ctx, in.Query)
		if err != nil {
			return nil, err
		}
		mi := t.memberInput(member, in, in.Query)
		if s, ok := member.(core.Streamer); ok {
			return s.Stream(ctx, mi)
		}
		res, err := member.Run(ctx, mi)
		if err != nil {
			return nil, fmt.Errorf("%s: member %s: %w", t.Name(), member.Name(), err)
		}
		return schema.StreamReaderFromArray([]string{res.Content}), nil
	}

	responses, err := t.gather(ctx, in)
	if err != nil {
		return nil, err
	}
	src, err := t.leader.Stream(ctx, t.synthesisMessages(in.Query, responses))
	if err != nil {
		return nil, fmt.Errorf("%s: synthesize: %w", t.Name(), err)
	}

	sr, sw := schema.Pipe[string](8)
	go func() {
		defer sw.Close()
		defer src.Close()
		for {
			chunk, err := src.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				sw.Send("", err)
				return
			}
			if chunk.Content == "" {
				continue
			}
			if closed := sw.Send(chunk.Content, nil); closed {
				return
			}
		}
	}()
	return sr, nil
}

// gather collects member responses for coordinate and collaborate modes.
func (t *TeamAgent) gather(ctx context.Context, in core.Input) ([]core.MemberResponse, error) {
	var tasks []delegation
	if t.mode == core.ModeCoordinate {
		plan, err := t.delegate(ctx, in.Query)
		if err != nil {
			return nil, err
		}
		tasks = plan
	} else {
		for _, m := range t.members {
			tasks = append(tasks, delegation{Member: m.Name(), Task: in.Query})
		}
	}

	responses := make([]core.MemberResponse, len(tasks))
	errs := make([]error, len(tasks))
	runOne := func(i int) {
		member := t.findMember(tasks[i].Member)
		res, err := member.Run(ctx, t.memberInput(member, in, tasks[i].Task))
		responses[i] = core.MemberResponse{Member: member.Name(), Content: res.Content}
		if err != nil {
			errs[i] = err
			responses[i].Content = "error: " + err.Error()
			t.log.Warn("team member failed", "member", member.Name(), "error", err)
		}
	}

	if t.mode == core.ModeCollaborate {
		var wg sync.WaitGroup
		for i := range tasks {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				runOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range tasks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			runOne(i)
		}
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(tasks) {
		return nil, fmt.Errorf("%s: every member failed: %w", t.Name(), errors.Join(errs...))
	}
	return responses, nil
}

// delegate asks the leader for per-member tasks. An unusable plan falls back
// to sending the query to every member.
func (t *TeamAgent) delegate(ctx context.Context, query string) ([]delegation, error) {
	var sb strings.Builder
	sb.WriteString(t.leaderPreamble())
	sb.WriteString("\n\nBreak the user's request into tasks for the members best suited to them. ")
	sb.WriteString(`Reply with JSON only, in the form {"tasks":[{"member":"<member name>","task":"<what that member should do>"}]}.`)

	resp, err := t.leader.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sb.String()),
		schema.UserMessage(query),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: delegate: %w", t.Name(), err)
	}

	var plan struct {
		Tasks []delegation `json:"tasks"`
	}
	var tasks []delegation
	if raw := extractJSON(resp.Content); raw != "" && json.Unmarshal([]byte(raw), &plan) == nil {
		for _, d := range plan.Tasks {
			if m := t.matchMember(d.Member); m != nil && strings.TrimSpace(d.Task) != "" {
				tasks = append(tasks, delegation{Member: m.Name(), Task: d.Task})
			}
		}
	}
	if len(tasks) == 0 {
		t.log.Debug("leader plan unusable, delegating to every member", "reply", resp.Content)
		for _, m := range t.members {
			tasks = append(tasks, delegation{Member: m.Name(), Task: query})
		}
	}
	return tasks, nil
}

// route asks the leader which member should answer. An unrecognised reply
// selects the first member.
func (t *TeamAgent) route(ctx context.Context, query string) (core.Agent, error) {
	prompt := t.leaderPreamble() + "\n\nReply with only the name of the single member best suited to answer the user's request."
	resp, err := t.leader.Generate(ctx, []*schema.Message{
		schema.SystemMessage(prompt),
		schema.UserMessage(query),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: route: %w", t.Name(), err)
	}
	if m := t.matchMember(resp.Content); m != nil {
		return m, nil
	}
	t.log.Debug("leader named no member, routing to the first", "reply", resp.Content)
	return t.members[0], nil
}

func (t *TeamAgent) leaderPreamble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the leader of %s.", t.Name())
	if t.spec.Description != "" {
		sb.WriteString(" ")
		sb.WriteString(t.spec.Description)
	}
	sb.WriteString("\n\nTeam members:\n")
	for _, m := range t.members {
		fmt.Fprintf(&sb, "- %s: %s\n", m.Name(), m.Description())
	}
	if len(t.spec.Instructions) > 0 {
		sb.WriteString("\n<instructions>\n")
		for _, ins := range t.spec.Instructions {
			fmt.Fprintf(&sb, "- %s\n", ins)
		}
		sb.WriteString("</instructions>")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (t *TeamAgent) synthesisMessages(query string, responses []core.MemberResponse) []*schema.Message {
	var sys strings.Builder
	sys.WriteString(t.leaderPreamble())
	sys.WriteString("\n\nCombine the member responses into one complete answer for the user.")
	if t.spec.SuccessCriteria != "" {
		fmt.Fprintf(&sys, "\nThe answer is complete when: %s", t.spec.SuccessCriteria)
	}
	if t.spec.Markdown {
		sys.WriteString("\nUse markdown to format your answer.")
	}

	var user strings.Builder
	fmt.Fprintf(&user, "User request: %s\n\nMember responses:", query)
	for _, r := range responses {
		fmt.Fprintf(&user, "\n\n### %s\n%s", r.Member, r.Content)
	}
	return []*schema.Message{
		schema.SystemMessage(sys.String()),
		schema.UserMessage(user.String()),
	}
}

// memberInput gives each member its own session so histories do not mix.
func (t *TeamAgent) memberInput(member core.Agent, in core.Input, query string) core.Input {
	return core.Input{
		Query:     query,
		SessionID: in.SessionID + ":" + collectionName(member.Name()),
		UserID:    in.UserID,
	}
}

// matchMember finds the member named in s: an exact case-insensitive match
// first, then the first member whose name s contains.
func (t *TeamAgent) matchMember(s string) core.Agent {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'.*`))
	if s == "" {
		return nil
	}
	for _, m := range t.members {
		if strings.ToLower(m.Name()) == s {
			return m
		}
	}
	for _, m := range t.members {
		if strings.Contains(s, strings.ToLower(m.Name())) {
			return m
		}
	}
	return nil
}

func (t *TeamAgent) findMember(name string) core.Agent {
	if m := t.matchMember(name); m != nil {
		return m
	}
	return t.members[0]
}

// extractJSON returns the outermost {...} span of s, or "".
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

var (
	_ core.Agent          = (*TeamAgent)(nil)
	_ core.Streamer       = (*TeamAgent)(nil)
	_ core.TraitsProvider = (*TeamAgent)(nil)
)
