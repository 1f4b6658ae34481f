package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// MarksConfig names the marks given to a group's members after a scan.
type MarksConfig struct {
	Master    string `mapstructure:"master"`
	Duplicate string `mapstructure:"duplicate"`
}

// Config represents the application configuration.
type Config struct {
	Roots             []string `mapstructure:"roots"`
	ExcludeDirs       []string `mapstructure:"exclude_dirs"`
	Extensions        []string `mapstructure:"extensions"`
	ExcludeExtensions []string `mapstructure:"exclude_extensions"`
	Types             []string `mapstructure:"types"`
	IgnoreLinks       bool     `mapstructure:"ignore_links"`
	UseOldestModTime  bool     `mapstructure:"use_oldest_mod_time"`

	Marks MarksConfig `mapstructure:"marks"`
	Trash struct {
		Permanent bool `mapstructure:"permanent"`
	} `mapstructure:"trash"`
	Manifest struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"manifest"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/dupsweep/config.yaml
//   - $HOME/.config/dupsweep/config.yaml
//
// Environment variables are prefixed with DUPSWEEP_
// (e.g., DUPSWEEP_IGNORE_LINKS, DUPSWEEP_MARKS_MASTER).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", appName))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, homeDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Manifest.Path, err = ExpandPath(cfg.Manifest.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
		return nil, err
	}
	for i, root := range cfg.Roots {
		if cfg.Roots[i], err = ExpandPath(root); err != nil {
			return nil, err
		}
	}
	for i, dir := range cfg.ExcludeDirs {
		if cfg.ExcludeDirs[i], err = ExpandPath(dir); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault("roots", []string{})
	v.SetDefault("exclude_dirs", DefaultExcludeDirs)
	v.SetDefault("extensions", []string{})
	v.SetDefault("exclude_extensions", []string{})
	v.SetDefault("types", []string{})
	v.SetDefault("ignore_links", true)
	v.SetDefault("use_oldest_mod_time", true)

	v.SetDefault("marks.master", DefaultMasterMark)
	v.SetDefault("marks.duplicate", DefaultDuplicateMark)
	v.SetDefault("trash.permanent", false)

	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.retention_days", DefaultRetentionDays)
	v.SetDefault("manifest.path", filepath.Join(homeDir, ".config", appName, ".manifest"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use logging.DefaultLogPath
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.compress", false)
	v.SetDefault("logging.components", map[string]string{
		"engine":   "info",
		"walker":   "warn",
		"index":    "info",
		"registry": "info",
		"apply":    "info",
	})
}

// MasterMark parses Marks.Master.
func (c *Config) MasterMark() (types.Mark, error) {
	m, err := types.ParseMark(c.Marks.Master)
	if err != nil {
		return types.MarkIgnore, fmt.Errorf("marks.master: %w", err)
	}
	return m, nil
}

// DuplicateMark parses Marks.Duplicate.
func (c *Config) DuplicateMark() (types.Mark, error) {
	m, err := types.ParseMark(c.Marks.Duplicate)
	if err != nil {
		return types.MarkIgnore, fmt.Errorf("marks.duplicate: %w", err)
	}
	return m, nil
}

// LogConfig converts the logging section into a logging.Config.
func (c *Config) LogConfig() (logging.Config, error) {
	cfg := logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Components: c.Logging.Components,
		Rotation: logging.RotationConfig{
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Compress:   c.Logging.Rotation.Compress,
		},
	}
	if cfg.Path == "" {
		cfg.Path = logging.DefaultLogPath()
	}

	if c.Logging.Rotation.MaxSize != "" {
		size, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		cfg.Rotation.MaxSize = int(size / types.MiB)
		if cfg.Rotation.MaxSize < 1 {
			cfg.Rotation.MaxSize = 1
		}
	}

	return cfg, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ManifestDir returns the default directory for apply history.
func ManifestDir() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, ".manifest"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	manifestDir, err := ManifestDir()
	if err != nil {
		return "", err
	}

	defaultConfig := fmt.Sprintf(`# dupsweep duplicate finder configuration

# Directories searched when none are given on the command line
roots: []

# Directories never searched. Entries with *, ?, [ or { are glob patterns,
# e.g. "**/node_modules".
exclude_dirs:
  - /proc
  - /sys
  - /dev

# Only scan these extensions (empty means all)
extensions: []

# Never scan these extensions
exclude_extensions: []

# Extension groups added to extensions: video, audio, image, archive,
# document, code, log
types: []

# Skip file symlinks while scanning
ignore_links: true

# When applying, give the master and ignored copies the oldest
# modification time in their group
use_oldest_mod_time: true

# Marks given after a scan: master, link, delete or ignore
marks:
  master: %s
  duplicate: %s

# Remove files permanently instead of using the system trash
trash:
  permanent: false

# Apply history
manifest:
  enabled: true
  path: %s
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/dupsweep/dupsweep.log)
  path: ""
  rotation:
    max_size: %s
    max_age: 30       # days
    max_backups: 5
    compress: false
  # Per-component log levels
  components:
    engine: info
    walker: warn
    index: info
    registry: info
    apply: info
`, DefaultMasterMark, DefaultDuplicateMark, manifestDir, DefaultRetentionDays, DefaultLogMaxSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/dupsweep/.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns $XDG_STATE_HOME/dupsweep/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}
