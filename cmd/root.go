package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/discovery"
	"github.com/agentdeck/agentdeck/internal/console"
	"github.com/agentdeck/agentdeck/internal/logger"
	"github.com/agentdeck/agentdeck/internal/telemetry"
	"github.com/agentdeck/agentdeck/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is the application version, set at build time with -ldflags.
var version = "0.1.0"

// GetVersion returns the application version.
func GetVersion() string { return version }

// rootOptions are the flags of the bare agentdeck command.
type rootOptions struct {
	cfgFile string
	agent   string
	query   string
	stream  bool
	watch   bool
	userID  string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agentdeck",
		Short: "agentdeck - a deck of LLM agents for your terminal",
		Long: `agentdeck hosts a deck of LLM-backed agents and teams.

Agents come from the compiled-in catalog and from agent packages under the
agents directory. Without arguments agentdeck opens the interactive console.

Examples:
  agentdeck                                   # interactive console
  agentdeck -a finance_agent -q "TSLA news"   # one question, no console
  agentdeck list                              # show every agent
  agentdeck serve                             # HTTP API on :7777`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetCommand(cmd.CommandPath())
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return initConfig(viper.GetViper(), opts.cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./.agentdeck.yaml or $HOME/.agentdeck.yaml)")
	pf.BoolP("verbose", "v", false, "enable debug logging and detailed errors")
	pf.String("agents-dir", "", "directory of agent packages (default \"agents\")")
	pf.Bool("json", false, "output machine-readable JSON")

	f := cmd.Flags()
	f.StringVarP(&opts.agent, "agent", "a", "", "agent key to query directly, skipping the console")
	f.StringVarP(&opts.query, "query", "q", "", "query for --agent")
	f.BoolVar(&opts.stream, "stream", false, "stream responses from agents that support it")
	f.BoolVar(&opts.watch, "watch", false, "log when agent packages change on disk")
	f.StringVar(&opts.userID, "user", "", "user id that owns long-term memories")

	cmd.AddCommand(newRunCmd(), newListCmd(), newServeCmd(), newDoctorCmd())
	return cmd
}

// bindFlags connects persistent flags to their viper keys.
func bindFlags(cmd *cobra.Command) error {
	bindings := map[string]string{
		"verbose":    "verbose",
		"agents-dir": "agents.dir",
		"json":       "json",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		// Unchanged flags must not shadow env and config file values.
		if !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return execute(context.Background(), newRootCmd(), os.Args[1:])
}

func execute(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		if msg := userMessage(err); msg != "" {
			PrintError(cmd.ErrOrStderr(), msg, err)
		}
	}
	return exitCode(err)
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	if opts.query != "" && opts.agent == "" {
		return &ExitError{Code: 1, Err: errors.New("--query requires --agent")}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	reg, _ := a.registry(ctx)

	if opts.agent != "" {
		if opts.query == "" {
			return &ExitError{Code: 1, Err: errors.New("--agent requires --query")}
		}
		return runAgent(ctx, cmd.OutOrStdout(), a, reg, runRequest{
			key:    opts.agent,
			query:  opts.query,
			stream: opts.stream,
			userID: opts.userID,
		})
	}

	if opts.watch {
		w, err := discovery.NewWatcher(a.settings.AgentsDir, discovery.DefaultDebounce, nil, a.log)
		if err != nil {
			a.log.Warn("cannot watch agents directory", "path", a.settings.AgentsDir, "error", err)
		} else {
			defer func() { _ = w.Close() }()
			go w.Run(ctx)
		}
	}

	a.telemetry.Track(telemetry.EventConsoleStart, telemetry.Properties{"agents": reg.Len()})

	out := cmd.OutOrStdout()
	return console.New(console.Options{
		Registry: reg,
		In:       cmd.InOrStdin(),
		Out:      out,
		Stream:   opts.stream,
		Rich:     ui.IsTerminal(out),
		UserID:   opts.userID,
		Logger:   a.log,
		Hook: func(key string, res core.Output, streamed bool, err error) {
			logger.SetAgent(key)
			telemetry.TrackRun(a.telemetry, telemetry.SurfaceConsole, key, res.Duration, streamed, err)
		},
	}).Run(ctx)
}
