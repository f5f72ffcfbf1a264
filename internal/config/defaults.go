package config

import (
	"os"
	"path/filepath"
	"strings"

	"noise-cleaner/internal/domain"
)

const (
	// AppDirName is the per-user directory holding the engine and config file.
	AppDirName = ".noise-cleaner"

	DefaultOutputSubdir    = "dnf_clean"
	DefaultDownloadTimeout = 30 * 60
	DefaultLogLevel        = "info"
)

// AppDir returns the per-user application directory.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, AppDirName)
}

// DefaultSettings returns baseline configuration for first launch.
// EngineURL stays empty so the platform release catalog is used.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		EngineDir:       filepath.Join(AppDir(), "bin"),
		OutputSubdir:    DefaultOutputSubdir,
		DownloadTimeout: DefaultDownloadTimeout,
		LogLevel:        DefaultLogLevel,
	}
}

// Normalize trims user input and fills empty fields from defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.EngineURL = strings.TrimSpace(settings.EngineURL)
	settings.EngineDir = strings.TrimSpace(settings.EngineDir)
	settings.OutputSubdir = strings.TrimSpace(settings.OutputSubdir)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	settings.LogFormat = strings.ToLower(strings.TrimSpace(settings.LogFormat))

	if settings.EngineDir == "" {
		settings.EngineDir = defaults.EngineDir
	}
	if settings.OutputSubdir == "" || filepath.IsAbs(settings.OutputSubdir) {
		settings.OutputSubdir = defaults.OutputSubdir
	}
	if settings.DownloadTimeout <= 0 {
		settings.DownloadTimeout = defaults.DownloadTimeout
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	return settings
}
