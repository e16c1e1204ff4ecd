package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/logger"
	"github.com/agentdeck/agentdeck/internal/telemetry"
	"github.com/agentdeck/agentdeck/internal/ui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		stream bool
		userID string
	)
	cmd := &cobra.Command{
		Use:   "run <agent> <query...>",
		Short: "Ask one agent one question",
		Long: `Run a single query against an agent and print the response.

Examples:
  agentdeck run finance_agent "What's the latest on NVDA?"
  agentdeck run web --stream summarize today's Go news
  agentdeck run travel_team --json "3 days in Lisbon"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			reg, _ := a.registry(ctx)
			return runAgent(ctx, cmd.OutOrStdout(), a, reg, runRequest{
				key:    args[0],
				query:  strings.Join(args[1:], " "),
				stream: stream,
				userID: userID,
			})
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "print the response as it is generated")
	cmd.Flags().StringVar(&userID, "user", "", "user id that owns long-term memories")
	return cmd
}

type runRequest struct {
	key    string
	query  string
	stream bool
	userID string
}

// runResult is the --json form of a response.
type runResult struct {
	Agent      string `json:"agent"`
	Key        string `json:"key"`
	Content    string `json:"content"`
	SessionID  string `json:"session_id"`
	DurationMS int64  `json:"duration_ms"`
}

// runAgent answers one query outside the console.
func runAgent(ctx context.Context, w io.Writer, a *app, reg *core.Registry, req runRequest) error {
	d, err := reg.Lookup(req.key)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%w (available: %s)", err, strings.Join(reg.Keys(), ", "))}
	}
	logger.SetAgent(d.Key)
	logger.SetLastInput(req.query)

	in := core.Input{Query: req.query, SessionID: uuid.New().String(), UserID: req.userID}
	traits := core.TraitsOf(d.Agent)
	streamed := !isJSON() && (req.stream || traits.Stream)

	start := time.Now()
	var out core.Output
	if streamed {
		out, err = core.RunStreaming(ctx, d.Agent, in, func(s string) { _, _ = io.WriteString(w, s) })
		_, _ = fmt.Fprintln(w)
	} else {
		out, err = d.Agent.Run(ctx, in)
	}
	telemetry.TrackRun(a.telemetry, telemetry.SurfaceCLI, d.Key, time.Since(start), streamed, err)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Key, err)
	}

	switch {
	case isJSON():
		return printJSON(w, runResult{
			Agent:      d.Name,
			Key:        d.Key,
			Content:    out.Content,
			SessionID:  in.SessionID,
			DurationMS: time.Since(start).Milliseconds(),
		})
	case streamed:
		return nil
	}

	content := out.Content
	if (out.Markdown || traits.Markdown) && ui.IsTerminal(w) {
		content = ui.RenderMarkdown(content)
	}
	_, _ = fmt.Fprintln(w, content)
	for _, m := range out.Members {
		_, _ = fmt.Fprintf(w, "%s %s\n", ui.StylePrefixMember.Render("↳ "+m.Member), ui.StyleSubtle.Render(ui.Summarize(m.Content, 100)))
	}
	return nil
}
