package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the anonymization service is reachable",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		if err := a.client.Health(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Health check failed: %v\n", err)
			exitCode = ExitFailed
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Service healthy at %s\n", a.client.BaseURL())
		return nil
	},
}
