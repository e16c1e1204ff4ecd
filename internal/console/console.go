/*
Package console implements the interactive agent console.

The console moves between two states. The main menu lists the registry and
accepts an agent key, "list" or "exit". An agent session sends every line to
the chosen agent until "back" or "exit". Interrupts and end of input end the
console with a farewell.
*/
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/ui"
	"github.com/google/uuid"
)

// Commands understood by the console.
const (
	CmdList     = "list"
	CmdExit     = "exit"
	CmdBack     = "back"
	CmdExamples = "examples"
)

// Farewell is printed whenever the console ends.
const Farewell = "Goodbye! 👋"

// Options configure a Console.
type Options struct {
	Registry *core.Registry
	In       io.Reader
	Out      io.Writer
	// Stream forces streaming for every agent that supports it.
	Stream bool
	// Rich enables the spinner and markdown rendering. Usually set when Out
	// is a terminal.
	Rich   bool
	UserID string
	Logger *slog.Logger
	// Hook, when set, observes every completed query. streamed reports
	// whether the reply was printed as it arrived.
	Hook func(key string, out core.Output, streamed bool, err error)
}

// Console is the interactive front end over a registry.
type Console struct {
	opts  Options
	out   io.Writer
	lines <-chan string
	log   *slog.Logger
}

// New creates a console.
func New(opts Options) *Console {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Console{opts: opts, out: opts.Out, log: opts.Logger}
}

// errQuit ends the console: exit command, interrupt or end of input.
var errQuit = errors.New("quit")

// Run drives the console until exit, end of input or ctx cancellation.
// All three end in the farewell and a nil error.
func (c *Console) Run(ctx context.Context) error {
	// Cancelling on return releases the reader when the console ends on
	// "exit" with input still pending.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.lines = readLines(ctx, c.opts.In)
	c.showMenu()

	for {
		line, err := c.prompt(ctx, "Select an agent or command")
		if err != nil {
			break
		}
		switch line {
		case "":
			continue
		case CmdExit:
			c.println(Farewell)
			return nil
		case CmdList:
			c.showMenu()
			continue
		}

		d, ok := c.opts.Registry.Get(line)
		if !ok {
			c.println(ui.StyleWarning.Render("Unknown agent or command: " + line))
			continue
		}
		if err := c.session(ctx, d); err != nil {
			break
		}
		c.showMenu()
	}

	c.println("")
	c.println(Farewell)
	return nil
}

// session runs one agent session. A nil return means "back"; errQuit ends
// the console.
func (c *Console) session(ctx context.Context, d core.Descriptor) error {
	c.println(ui.RenderInfoPanel(d.Icon+" "+d.Name, d.Description+"\n"+
		ui.StyleSubtle.Render("Type 'back' to return to the menu, 'examples' for sample queries.")))
	if len(d.Examples) > 0 {
		c.printExamples(d)
	}

	sessionID := uuid.New().String()
	for {
		line, err := c.prompt(ctx, d.Key)
		if err != nil {
			return err
		}
		switch line {
		case "":
			continue
		case CmdBack:
			return nil
		case CmdExit:
			return errQuit
		case CmdExamples:
			c.printExamples(d)
			continue
		}

		in := core.Input{Query: line, SessionID: sessionID, UserID: c.opts.UserID}
		out, streamed, err := c.ask(ctx, d, in)
		if c.opts.Hook != nil {
			c.opts.Hook(d.Key, out, streamed, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return errQuit
			}
			c.log.Debug("query failed", "key", d.Key, "error", err)
			c.println(ui.StylePrefixError.Render("Error: ") + err.Error())
			continue
		}
		c.printMembers(out)
	}
}

// ask runs one query, streaming when the agent prefers it, and reports
// which path it took.
func (c *Console) ask(ctx context.Context, d core.Descriptor, in core.Input) (core.Output, bool, error) {
	traits := core.TraitsOf(d.Agent)
	_, canStream := d.Agent.(core.Streamer)

	if canStream && (traits.Stream || c.opts.Stream) {
		c.print(ui.StylePrefixAgent.Render(d.Name + ": "))
		out, err := core.RunStreaming(ctx, d.Agent, in, func(s string) { c.print(s) })
		c.println("")
		return out, true, err
	}

	var spin *ui.Spinner
	if c.opts.Rich {
		spin = ui.NewSpinner(c.out, "Thinking...")
		spin.Start()
	}
	out, err := d.Agent.Run(ctx, in)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return out, false, err
	}

	content := out.Content
	if c.opts.Rich && (out.Markdown || traits.Markdown) {
		content = ui.RenderMarkdown(content)
	}
	c.println(ui.StylePrefixAgent.Render(d.Name+":") + "\n" + content)
	return out, false, nil
}

func (c *Console) printMembers(out core.Output) {
	for _, m := range out.Members {
		c.println(ui.StylePrefixMember.Render("  ↳ "+m.Member) + " " + ui.StyleSubtle.Render(ui.Summarize(m.Content, 100)))
	}
}

func (c *Console) printExamples(d core.Descriptor) {
	if len(d.Examples) == 0 {
		c.println(ui.StyleSubtle.Render("No examples for this agent."))
		return
	}
	c.println(ui.StyleTitle.Render("Examples:"))
	for _, ex := range d.Examples {
		c.println("  • " + ex)
	}
}

func (c *Console) showMenu() {
	reg := c.opts.Registry
	ui.RenderPageHeader(c.out, "agentdeck", fmt.Sprintf("%d agents available", reg.Len()))

	rows := make([]ui.CatalogRow, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		rows = append(rows, ui.CatalogRow{Icon: d.Icon, Key: d.Key, Name: d.Name, Description: d.Description})
	}
	c.print(ui.RenderCatalog(rows, false))
	c.println(ui.StyleSubtle.Render("Commands: <key> to chat, 'list' to redisplay, 'exit' to quit."))
}

// prompt writes label and waits for the next trimmed line.
func (c *Console) prompt(ctx context.Context, label string) (string, error) {
	c.print(ui.StylePrefixUser.Render(label + " › "))
	select {
	case <-ctx.Done():
		return "", errQuit
	case line, ok := <-c.lines:
		if !ok {
			return "", errQuit
		}
		return strings.TrimSpace(line), nil
	}
}

func (c *Console) print(s string) { _, _ = io.WriteString(c.out, s) }

func (c *Console) println(s string) { _, _ = fmt.Fprintln(c.out, s) }

// readLines feeds lines from r until EOF or ctx is done. Reading happens on
// its own goroutine so an interrupt is noticed while waiting for input.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
