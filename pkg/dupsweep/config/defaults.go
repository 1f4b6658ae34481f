// Package config provides configuration management for dupsweep.
package config

// Default configuration values for dupsweep.
const (
	// DefaultMasterMark is the mark given to the first member of each group.
	DefaultMasterMark = "master"

	// DefaultDuplicateMark is the mark given to the other members.
	DefaultDuplicateMark = "ignore"

	// DefaultRetentionDays is the default number of days to retain
	// apply history.
	DefaultRetentionDays = 30

	// DefaultLogMaxSize is the default size at which the log file rotates.
	DefaultLogMaxSize = "10MB"

	// appName names the config, data and state directories.
	appName = "dupsweep"

	// envPrefix prefixes environment overrides, e.g. DUPSWEEP_IGNORE_LINKS.
	envPrefix = "DUPSWEEP"
)

// DefaultExcludeDirs contains directories that are never searched by
// default. Entries that do not exist on the current system are ignored.
var DefaultExcludeDirs = []string{
	"/proc",
	"/sys",
	"/dev",
}
