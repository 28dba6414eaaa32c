package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/pgscripts"
	"github.com/aqasim81/pgscripts/internal/script"
)

var runCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "run <file>",
	Short: "Apply a single script file",
	Long: `Apply one script file. Like apply, a script already recorded with the
same hash is skipped and one whose contents changed is rejected, unless
--skip-hash-check is given: then the ledger is not consulted and the script
always runs and is always recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	runCmd.Flags().Bool("skip-hash-check", false, "execute without consulting pg_scripts first")
	runCmd.Flags().Bool("no-lock", false, "do not take the advisory lock")
	addTimeoutFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := commandConfig(cmd)
	out := cmd.OutOrStdout()

	// Reject malformed names before touching the database.
	if _, err := script.ReadFile(args[0]); err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	bypass, _ := cmd.Flags().GetBool("skip-hash-check")
	progress := &progressPrinter{out: out}

	h, err := connect(commandContext(cmd), cfg, out, pgscripts.WithProgressCallback(progress.handle))
	if err != nil {
		return err
	}
	defer h.Close()

	return h.ApplyFile(commandContext(cmd), args[0], bypass)
}
