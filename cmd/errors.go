package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/spf13/viper"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode maps err to a process exit code. Configuration errors and
// start-up failures are 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// PrintError prints a user-friendly message by default. If the --verbose
// flag is set, it prints the full technical error instead.
func PrintError(w io.Writer, userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		_, _ = fmt.Fprintf(w, "Error: %v\n", technicalErr)
		return
	}
	_, _ = fmt.Fprintln(w, userMsg)
}

// userMessage returns the message shown for err without --verbose.
func userMessage(err error) string {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return "Configuration error: " + cfgErr.Error()
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return ""
	}
	return "Error: " + err.Error()
}
