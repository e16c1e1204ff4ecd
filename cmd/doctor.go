package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentdeck/agentdeck/internal/agents/discovery"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/spf13/cobra"
)

// Check statuses.
const (
	statusOK   = "ok"
	statusWarn = "warn"
	statusFail = "fail"
)

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// doctorReport is the --json form of a doctor run.
type doctorReport struct {
	Checks  []DoctorCheck    `json:"checks"`
	Skipped []discovery.Skip `json:"skipped"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and agent discovery",
		Long: `Validate your agentdeck setup.

Checks:
  • Provider credentials for the configured LLM
  • Data directory and memory database
  • Agents directory and every package that failed to load

Exits with status 1 when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var checks []DoctorCheck
			checks = append(checks, checkSettings(a.settings))
			checks = append(checks, checkDataDir(a.settings))
			checks = append(checks, checkMemory(a))

			reg, report := a.registry(cmd.Context())
			checks = append(checks, checkAgents(report, reg.Len()))

			failed := false
			for _, c := range checks {
				if c.Status == statusFail {
					failed = true
				}
			}

			w := cmd.OutOrStdout()
			if isJSON() {
				if err := printJSON(w, doctorReport{Checks: checks, Skipped: report.Skips}); err != nil {
					return err
				}
			} else {
				printDoctor(w, checks, report)
			}
			if failed {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
}

func checkSettings(s config.Settings) DoctorCheck {
	c := DoctorCheck{Name: "Configuration"}
	if err := s.Validate(); err != nil {
		c.Status = statusFail
		c.Message = err.Error()
		if env := config.RequiredCredential(s.LLM.Provider); env != "" {
			c.Hint = fmt.Sprintf("export %s=... or add it to .env", env)
		}
		return c
	}
	c.Status = statusOK
	c.Message = fmt.Sprintf("provider %s, model %s", s.LLM.Provider, s.LLM.Model)
	if s.Credentials.Firecrawl == "" {
		c.Hint = config.EnvFirecrawlAPIKey + " not set; web_fetch uses plain HTTP"
	}
	return c
}

func checkDataDir(s config.Settings) DoctorCheck {
	c := DoctorCheck{Name: "Data directory"}
	if err := writableDir(s.DataDir); err != nil {
		c.Status = statusFail
		c.Message = err.Error()
		c.Hint = "set data.dir or AGENTDECK_DATA_DIR to a writable directory"
		return c
	}
	c.Status = statusOK
	c.Message = s.DataDir
	return c
}

func checkMemory(a *app) DoctorCheck {
	c := DoctorCheck{Name: "Memory"}
	if a.store == nil {
		c.Status = statusWarn
		c.Message = "memory database unavailable; agents with memory or knowledge are skipped"
		c.Hint = "check memory.path: " + a.settings.MemoryDBPath()
		return c
	}
	c.Status = statusOK
	c.Message = a.settings.MemoryDBPath()
	return c
}

func checkAgents(report discovery.Report, total int) DoctorCheck {
	c := DoctorCheck{Name: "Agents"}
	switch {
	case report.RootMissing:
		c.Status = statusWarn
		c.Message = fmt.Sprintf("agents directory %q not found; %d builtin agents available", report.Root, total)
		c.Hint = "use --agents-dir or agents.dir to point at your packages"
	case len(report.Skips) > 0:
		c.Status = statusWarn
		c.Message = fmt.Sprintf("%d agents available, %d discovered, %d skipped", total, len(report.Added), len(report.Skips))
	default:
		c.Status = statusOK
		c.Message = fmt.Sprintf("%d agents available, %d discovered", total, len(report.Added))
	}
	return c
}

func printDoctor(w io.Writer, checks []DoctorCheck, report discovery.Report) {
	rule := strings.Repeat("━", 51)
	_, _ = fmt.Fprintf(w, "🩺 agentdeck doctor\n%s\n\n", rule)

	failed := false
	for _, c := range checks {
		printCheck(w, c)
		if c.Status == statusFail {
			failed = true
		}
	}

	if len(report.Skips) > 0 {
		_, _ = fmt.Fprintln(w, "\nSkipped packages:")
		for _, s := range report.Skips {
			_, _ = fmt.Fprintf(w, "  • %s (%s): %s\n", s.Module, s.Path, s.Reason)
		}
	}

	_, _ = fmt.Fprintf(w, "\n%s\n", rule)
	if failed {
		_, _ = fmt.Fprintln(w, "❌ Issues found. Fix the errors above before continuing.")
	} else {
		_, _ = fmt.Fprintln(w, "✅ Everything looks good!")
	}
}

func printCheck(w io.Writer, c DoctorCheck) {
	var icon string
	switch c.Status {
	case statusOK:
		icon = "✅"
	case statusWarn:
		icon = "⚠️ "
	case statusFail:
		icon = "❌"
	}
	_, _ = fmt.Fprintf(w, "%s %s: %s\n", icon, c.Name, c.Message)
	if c.Hint != "" {
		_, _ = fmt.Fprintf(w, "   → %s\n", c.Hint)
	}
}
