package main

import (
	"os"

	"github.com/agentdeck/agentdeck/cmd"
	"github.com/agentdeck/agentdeck/internal/logger"
)

func main() {
	os.Exit(run())
}

// run is separate from main so the deferred crash handler runs before exit.
func run() int {
	defer logger.HandlePanic()
	return cmd.Execute()
}
