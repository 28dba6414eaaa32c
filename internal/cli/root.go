package cli

import (
	"fmt"
	"os"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/aqasim81/pgscripts/internal/config"
)

const version = "0.1.0"

var logger = loggo.GetLogger("pgscripts.cli")

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the pgscripts CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "pgscripts",
	Version: version,
	Short:   "Apply versioned SQL scripts to PostgreSQL exactly once",
	Long: `pgscripts applies numbered SQL script files to a PostgreSQL database in
order. Every executed script is recorded with its SHA-256 hash in the
pg_scripts table; recorded scripts are skipped on later runs and a script
whose contents changed after it was applied is rejected.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", "pgscripts.yml", "path to configuration file")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().String("script-dir", "", "path to script files")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	spec := cfg.LoggingSpec()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		spec = "<root>=DEBUG"
	}

	if err := loggo.ConfigureLoggers(spec); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	AppConfig = cfg

	logger.Debugf("configuration loaded (file %s, optional %t)", configPath, allowMissing)

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}

	if cmd.Flags().Changed("script-dir") {
		cfg.ScriptDirectory, _ = cmd.Flags().GetString("script-dir")
	}
}
