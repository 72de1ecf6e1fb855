// Command asrctl is a small operational client for the asr-runner HTTP
// service: list registered models, inspect the currently loaded backend,
// and check liveness, without needing curl + jq on hand.
package main

import (
	"fmt"
	"os"

	"github.com/austery/asr-runner/cmd/asrctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
