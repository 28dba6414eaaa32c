package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "bootstrap",
	Short: "Create the pg_scripts table if it does not exist",
	Args:  cobra.NoArgs,
	RunE:  runBootstrap,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	// Open bootstraps the ledger; nothing else to do.
	h, err := connect(commandContext(cmd), AppConfig, out)
	if err != nil {
		return err
	}

	if err := h.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}

	fmt.Fprintln(out, "pg_scripts is ready.")

	return nil
}
