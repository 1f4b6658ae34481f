package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage dupsweep configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/dupsweep/config.yaml (if set)
  2. ~/.config/dupsweep/config.yaml

Environment variables can override config file settings using the DUPSWEEP_ prefix:
  DUPSWEEP_IGNORE_LINKS=false
  DUPSWEEP_MARKS_DUPLICATE=delete
  DUPSWEEP_EXCLUDE_DIRS=/tmp,/var/cache`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if cfg == nil {
		loaded, err := config.LoadFile(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	out := cmd.OutOrStdout()
	if cfgFile != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", cfgFile)
	} else if path, err := config.ConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Fprintf(out, "Config file: %s\n\n", path)
		} else {
			fmt.Fprintln(out, "Config file: (using defaults, no file found)")
			fmt.Fprintln(out)
		}
	}

	writeConfig(out, cfg)

	fmt.Fprintln(out, "\nEnvironment Overrides:")
	fmt.Fprintln(out, "----------------------")
	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "DUPSWEEP_") {
			overrides = append(overrides, kv)
		}
	}
	sort.Strings(overrides)
	if len(overrides) == 0 {
		fmt.Fprintln(out, "(none)")
	}
	for _, kv := range overrides {
		fmt.Fprintln(out, kv)
	}

	return nil
}

// writeConfig prints the effective settings.
func writeConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprintf(out, "roots:                    %v\n", cfg.Roots)
	fmt.Fprintf(out, "exclude_dirs:             %v\n", cfg.ExcludeDirs)
	fmt.Fprintf(out, "extensions:               %v\n", cfg.Extensions)
	fmt.Fprintf(out, "exclude_extensions:       %v\n", cfg.ExcludeExtensions)
	fmt.Fprintf(out, "types:                    %v\n", cfg.Types)
	fmt.Fprintf(out, "ignore_links:             %t\n", cfg.IgnoreLinks)
	fmt.Fprintf(out, "use_oldest_mod_time:      %t\n", cfg.UseOldestModTime)
	fmt.Fprintf(out, "marks.master:             %s\n", cfg.Marks.Master)
	fmt.Fprintf(out, "marks.duplicate:          %s\n", cfg.Marks.Duplicate)
	fmt.Fprintf(out, "trash.permanent:          %t\n", cfg.Trash.Permanent)
	fmt.Fprintf(out, "manifest.enabled:         %t\n", cfg.Manifest.Enabled)
	fmt.Fprintf(out, "manifest.path:            %s\n", cfg.Manifest.Path)
	fmt.Fprintf(out, "manifest.retention_days:  %d\n", cfg.Manifest.RetentionDays)
	fmt.Fprintf(out, "logging.level:            %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "logging.path:             %s\n", cfg.Logging.Path)
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(_ *cobra.Command, _ []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'dupsweep config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
