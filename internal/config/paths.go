package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns where smsctl writes log files: a logs directory
// under SMSCTL_CONFIG_DIR when set, %LOCALAPPDATA%\smsctl\logs on Windows,
// and ~/.config/smsctl/logs elsewhere.
func LogDirectory() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, "logs")
	}
	if runtime.GOOS == "windows" {
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, ConfigDir, "logs")
		}
	}
	if dir := getConfigDir(); dir != "" {
		return filepath.Join(dir, "logs")
	}
	return filepath.Join(os.TempDir(), "smsctl-logs")
}

// EnsureLogDirectory creates the log directory, readable by the owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
