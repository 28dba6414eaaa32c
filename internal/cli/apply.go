package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/pgscripts"
	"github.com/aqasim81/pgscripts/internal/config"
	"github.com/aqasim81/pgscripts/internal/runner"
)

// errScriptDirRequired is returned when neither an argument nor config names a directory.
var errScriptDirRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"script directory is required (pass it as an argument, set --script-dir, PG_SCRIPT_DIRECTORY, or script_directory in config)",
)

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply [dir]",
	Short: "Apply pending scripts from a directory",
	Long: `Apply every script in the directory in sequence order. Scripts already
recorded with the same hash are skipped; a recorded script whose file changed
stops the run. Each script runs in its own transaction together with its
pg_scripts entry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	applyCmd.Flags().Bool("dry-run", false, "verify scripts and show what would be applied without executing")
	applyCmd.Flags().Bool("no-lock", false, "do not take the advisory lock")
	addTimeoutFlags(applyCmd)
	rootCmd.AddCommand(applyCmd)
}

func addTimeoutFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	cmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg := commandConfig(cmd)

	dir := cfg.ScriptDirectory
	if len(args) == 1 {
		dir = args[0]
	}

	if dir == "" {
		return errScriptDirRequired
	}

	out := cmd.OutOrStdout()

	set, err := loadScripts(dir, out)
	if err != nil || set == nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	progress := &progressPrinter{out: out}

	h, err := connect(commandContext(cmd), cfg, out,
		pgscripts.WithDryRun(dryRun),
		pgscripts.WithProgressCallback(progress.handle),
	)
	if err != nil {
		return err
	}
	defer h.Close()

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	summary, err := h.ApplySet(commandContext(cmd), set)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d script(s) would be applied, %d already applied.\n",
			len(summary.Pending), len(summary.Skipped))
	} else {
		fmt.Fprintf(out, "\nApply complete: %d applied, %d skipped.\n",
			len(summary.Applied), len(summary.Skipped))
	}

	return nil
}

// commandConfig returns a copy of AppConfig with the command's flag
// overrides applied.
func commandConfig(cmd *cobra.Command) *config.Config {
	cfg := *AppConfig

	if cmd.Flags().Lookup("no-lock") != nil {
		if noLock, _ := cmd.Flags().GetBool("no-lock"); noLock {
			cfg.AdvisoryLock = false
		}
	}

	if cmd.Flags().Changed("lock-timeout") {
		cfg.LockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	if cmd.Flags().Changed("statement-timeout") {
		cfg.StatementTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	return &cfg
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// loadScripts validates every file name in dir before any connection is
// made. It returns nil, nil when the directory holds no scripts.
func loadScripts(dir string, out io.Writer) (*pgscripts.ScriptSet, error) {
	set, err := pgscripts.LoadScripts(dir)
	if err != nil {
		return nil, err
	}

	if set.Len() == 0 {
		fmt.Fprintln(out, "No script files found.")
		return nil, nil //nolint:nilnil // nil,nil signals "no scripts, no error"
	}

	return set, nil
}

// connect opens a Handler without auto-applying the configured directory;
// commands drive the runner themselves.
func connect(ctx context.Context, cfg *config.Config, out io.Writer, opts ...pgscripts.Option) (*pgscripts.Handler, error) {
	c := *cfg
	c.ScriptDirectory = ""

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(c.DSN()))
	logger.Debugf("advisory lock %t, lock timeout %s, statement timeout %s",
		c.AdvisoryLock, c.LockTimeout, c.StatementTimeout)

	h, err := pgscripts.Open(ctx, &c, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return h, nil
}

// progressPrinter renders runner events one line per script.
type progressPrinter struct {
	out io.Writer
}

func (p *progressPrinter) handle(event runner.ProgressEvent) {
	name := event.Script.Name

	switch event.State {
	case runner.StateVerified:
		if event.DryRun {
			fmt.Fprintf(p.out, "  Would apply %s\n", name)
		} else {
			fmt.Fprintf(p.out, "  Applying %s ... ", name)
		}
	case runner.StateRecorded:
		fmt.Fprintf(p.out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
	case runner.StateSkipped:
		fmt.Fprintf(p.out, "  Skipping %s (already applied)\n", name)
	case runner.StateRejected:
		fmt.Fprintf(p.out, "  Rejected %s\n", name)
		fmt.Fprintf(p.out, "    Error: %v\n", event.Error)
	case runner.StateExecutionFailed:
		fmt.Fprintln(p.out, "FAILED")
		fmt.Fprintf(p.out, "    Error: %v\n", event.Error)
	case runner.StateExecuted:
	}
}
