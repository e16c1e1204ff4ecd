package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/agentdeck/agentdeck/internal/server"
	"github.com/agentdeck/agentdeck/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiled-in agents over HTTP",
		Long: `Start the HTTP API over the compiled-in agent catalog.

Endpoints:
  GET  /health
  GET  /api/agents
  GET  /api/agents/{id}
  POST /api/agents/{id}/runs   {"message": "...", "stream": false}

Discovered agent packages are not served.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("serve.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlag("serve.agents", cmd.Flags().Lookup("agents"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entries, err := server.BuildEntries(ctx, a.builder, a.settings.Serve.Agents)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			srv, err := server.New(a.settings.Serve, entries, a.log, a.telemetry)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			a.telemetry.Track(telemetry.EventServeStart, telemetry.Properties{"agents": len(entries)})
			cmd.Printf("agentdeck serving %d agents on %s\n", len(entries), srv.Addr())
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default \":7777\")")
	cmd.Flags().StringSlice("agents", nil, "builtin agent ids to serve (default all)")
	return cmd
}
