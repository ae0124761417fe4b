// Package config provides build metadata and environment-derived paths
// for the subscription service.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed version
var version string

//go:embed name
var name string

// LogLevel represents the severity level for application logging.
type LogLevel string

// Log levels, most to least verbose.
const (
	Debug LogLevel = "debug"
	Info  LogLevel = "info"
	Warn  LogLevel = "warn"
	Error LogLevel = "error"
)

// GetVersion returns the embedded application version.
func GetVersion() string {
	return strings.TrimSpace(version)
}

// GetName returns the embedded application name.
func GetName() string {
	return strings.TrimSpace(name)
}

// IsDebug reports whether debug mode is enabled via the VSUB_DEBUG environment variable.
func IsDebug() bool {
	return os.Getenv("VSUB_DEBUG") == "true"
}

// GetLogLevel returns the configured log level, defaulting to Info.
// VSUB_DEBUG=true forces Debug regardless of VSUB_LOG_LEVEL.
func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("VSUB_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

// GetConfFilePath returns the path of the TOML configuration file.
// Empty when neither the flag nor VSUB_CONF_FILE supplied one.
func GetConfFilePath() string {
	return os.Getenv("VSUB_CONF_FILE")
}

// GetLogFolder returns the folder for the service log file. Empty means
// file logging is disabled and the logger writes to stderr only.
func GetLogFolder() string {
	return os.Getenv("VSUB_LOG_FOLDER")
}

// GetLogFile returns the full path of the service log file, empty when file
// logging is disabled.
func GetLogFile() string {
	folder := GetLogFolder()
	if folder == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s.log", folder, GetName())
}
