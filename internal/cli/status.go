package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"
	"github.com/spf13/cobra"

	"github.com/aqasim81/pgscripts/internal/runner"
)

// errUnknownFormat is returned for a --format value other than text or json.
var errUnknownFormat = errors.New("unknown output format") //nolint:gochecknoglobals // sentinel error

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status [dir]",
	Short: "Show script status",
	Long: `Compare the scripts in a directory with the pg_scripts table without
applying anything. Each script is reported as applied, pending or drifted;
recorded entries with no file on disk are reported as missing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "text", "output format (text, json)")
	rootCmd.AddCommand(statusCmd)
}

var conditionColor = map[runner.Condition]*ansiterm.Context{ //nolint:gochecknoglobals // lookup table
	runner.ConditionApplied: ansiterm.Foreground(ansiterm.Green),
	runner.ConditionPending: ansiterm.Foreground(ansiterm.Yellow),
	runner.ConditionDrifted: ansiterm.Foreground(ansiterm.BrightRed),
	runner.ConditionMissing: ansiterm.Foreground(ansiterm.Magenta),
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}

	dir := AppConfig.ScriptDirectory
	if len(args) == 1 {
		dir = args[0]
	}

	if dir == "" {
		return errScriptDirRequired
	}

	// Connection chatter goes to stderr so json output stays parseable.
	h, err := connect(commandContext(cmd), AppConfig, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer h.Close()

	rows, err := h.Status(commandContext(cmd), dir)
	if err != nil {
		return err
	}

	if format == "json" {
		return writeStatusJSON(cmd.OutOrStdout(), rows)
	}

	return writeStatusText(cmd.OutOrStdout(), rows)
}

func writeStatusJSON(out io.Writer, rows []runner.ScriptStatus) error {
	if rows == nil {
		rows = []runner.ScriptStatus{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	return nil
}

func writeStatusText(out io.Writer, rows []runner.ScriptStatus) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No scripts found.")
		return nil
	}

	tw := ansiterm.NewTabWriter(out, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCRIPT\tSTATUS\tAPPLIED")

	counts := make(map[runner.Condition]int)

	for _, row := range rows {
		counts[row.Condition]++

		appliedAt := "-"
		if !row.AppliedAt.IsZero() {
			appliedAt = humanize.Time(row.AppliedAt)
		}

		fmt.Fprintf(tw, "%d\t%s\t", row.SequenceID, row.Name)
		conditionColor[row.Condition].Fprintf(tw, "%s", row.Condition)
		fmt.Fprintf(tw, "\t%s\n", appliedAt)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}

	fmt.Fprintf(out, "\n%d applied, %d pending, %d drifted, %d missing.\n",
		counts[runner.ConditionApplied], counts[runner.ConditionPending],
		counts[runner.ConditionDrifted], counts[runner.ConditionMissing])

	return nil
}
