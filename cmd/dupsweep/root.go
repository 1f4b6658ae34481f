package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
)

var (
	cfgFile string

	// appConfig is the merged file, environment and flag configuration.
	// It is set by initializeLogging before any command runs.
	appConfig *config.Config

	rootCmd = &cobra.Command{
		Use:   "dupsweep [dir...]",
		Short: "Find and remove duplicate files",
		Long: `Dupsweep searches directories for files with identical content and
helps you reclaim the space they use.

Files are compared by size first and by SHA-256 digest only when sizes
match. Each duplicate group gets one master; the other copies can be
replaced by symlinks to it or moved to the trash.

Examples:
  dupsweep ~/Pictures /mnt/backup     # Report duplicates across two trees
  dupsweep -t image ~/Pictures        # Only image files
  dupsweep -x '**/node_modules' .     # Skip every node_modules directory
  dupsweep --dup-mark delete -d .     # Preview deleting every extra copy
  dupsweep --dup-mark link --apply .  # Replace extra copies with symlinks
  dupsweep -o json . > dupes.json     # Machine-readable report
  dupsweep history                    # View applied changes`,
		Args:               cobra.ArbitraryArgs,
		PersistentPreRunE:  initializeLogging,
		PersistentPostRunE: closeLogging,
		RunE:               runScan,
		SilenceUsage:       true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/dupsweep/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	registerScanFlags(rootCmd.Flags())

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("apply", rootCmd.Flags().Lookup("apply"))
	_ = viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
}

// initConfig enables environment overrides for the command-line only
// settings (output, apply, dry_run, quiet, verbose).
func initConfig() {
	viper.SetEnvPrefix("DUPSWEEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("output", "pretty")
}

// initializeLogging loads the configuration, merges the command-line flags
// into it, ensures the application directories exist and starts logging.
func initializeLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd != nil {
		if err := applyFlagOverrides(cmd.Flags(), cfg); err != nil {
			return err
		}
	}

	if err := ensureDirectories(); err != nil {
		return err
	}

	logCfg, err := cfg.LogConfig()
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	switch {
	case getQuiet():
		logCfg.ConsoleLevel = ""
	case getVerbose():
		logCfg.Level = "debug"
		logCfg.ConsoleLevel = "debug"
	default:
		logCfg.ConsoleLevel = "error"
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	appConfig = cfg
	return nil
}

// closeLogging flushes and closes the log file.
func closeLogging(_ *cobra.Command, _ []string) error {
	return logging.Close()
}

// ensureDirectories creates the config, data and state directories.
func ensureDirectories() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	for _, dir := range []string{configDir, config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Stdout is reserved for the report.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
