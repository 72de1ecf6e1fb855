package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "health",
		Short: "Check service liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body map[string]any
			if err := getJSON(cmd.Context(), serverURL+"/health", &body); err != nil {
				return fmt.Errorf("service unreachable: %w", err)
			}
			cmd.Println("ok:", body["status"])
			return nil
		},
	}
	return c
}
