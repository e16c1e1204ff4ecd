package cmd

import (
	"fmt"

	"github.com/agentdeck/agentdeck/internal/ui"
	"github.com/spf13/cobra"
)

// agentSummary is the --json form of a registry entry.
type agentSummary struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Source      string   `json:"source"`
	Examples    []string `json:"examples,omitempty"`
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every available agent",
		Long: `List the compiled-in agents and the agent packages discovered under the
agents directory, sorted by key.

Examples:
  agentdeck list
  agentdeck list --json
  agentdeck list --agents-dir ./my_agents`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			reg, report := a.registry(cmd.Context())
			w := cmd.OutOrStdout()

			if isJSON() {
				out := make([]agentSummary, 0, reg.Len())
				for _, d := range reg.Descriptors() {
					out = append(out, agentSummary{
						Key: d.Key, Name: d.Name, Description: d.Description,
						Icon: d.Icon, Source: d.Source, Examples: d.Examples,
					})
				}
				return printJSON(w, out)
			}

			if reg.Len() == 0 {
				_, _ = fmt.Fprintln(w, "No agents available.")
				_, _ = fmt.Fprintln(w, "Run 'agentdeck doctor' to see why.")
				return nil
			}

			rows := make([]ui.CatalogRow, 0, reg.Len())
			for _, d := range reg.Descriptors() {
				rows = append(rows, ui.CatalogRow{Icon: d.Icon, Key: d.Key, Name: d.Name, Description: d.Description, Source: d.Source})
			}
			_, _ = fmt.Fprint(w, ui.RenderCatalog(rows, isVerbose()))
			if n := len(report.Skips); n > 0 {
				_, _ = fmt.Fprintln(w, ui.StyleWarning.Render(fmt.Sprintf("%d package(s) skipped; run 'agentdeck doctor' for details.", n)))
			}
			return nil
		},
	}
}
