package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/ini.v1"
)

// SessionProfile remembers the last directory scope between runs.
//
// INI format:
//
//	[sms]
//	base_url = https://sms.example.com
//	user_id = 42
//	role = org_admin
//
//	[directory]
//	academic_year = 5
//	branch = 2
type SessionProfile struct {
	BaseURL      string
	UserID       string
	Role         string
	AcademicYear string
	Branch       string
}

// DefaultSessionPath returns ~/.config/smsctl/session.
func DefaultSessionPath() string {
	dir := getConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "session")
}

// LoadSessionProfile loads the session profile from an INI file.
// A missing file yields an empty profile and no error.
func LoadSessionProfile(path string) (*SessionProfile, error) {
	profile := &SessionProfile{}
	if path == "" {
		path = DefaultSessionPath()
	}
	if path == "" {
		return profile, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return profile, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load session profile: %w", err)
	}

	sms := iniFile.Section("sms")
	profile.BaseURL = sms.Key("base_url").String()
	profile.UserID = sms.Key("user_id").String()
	profile.Role = sms.Key("role").String()

	dir := iniFile.Section("directory")
	profile.AcademicYear = dir.Key("academic_year").String()
	profile.Branch = dir.Key("branch").String()

	return profile, nil
}

// SaveSessionProfile writes the profile atomically with 0600 permissions.
func SaveSessionProfile(profile *SessionProfile, path string) error {
	if path == "" {
		path = DefaultSessionPath()
	}
	if path == "" {
		return fmt.Errorf("could not determine session profile path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sms, err := iniFile.NewSection("sms")
	if err != nil {
		return fmt.Errorf("failed to create sms section: %w", err)
	}
	sms.Key("base_url").SetValue(profile.BaseURL)
	sms.Key("user_id").SetValue(profile.UserID)
	sms.Key("role").SetValue(profile.Role)

	dir, err := iniFile.NewSection("directory")
	if err != nil {
		return fmt.Errorf("failed to create directory section: %w", err)
	}
	dir.Key("academic_year").SetValue(profile.AcademicYear)
	dir.Key("branch").SetValue(profile.Branch)

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write session profile: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set session profile permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save session profile: %w", err)
	}
	return nil
}

// ApplyScope fills empty year/branch from the profile. Values already set
// (from flags or config.csv) win.
func (p *SessionProfile) ApplyScope(year, branch string) (string, string) {
	if year == "" {
		year = p.AcademicYear
	}
	if branch == "" {
		branch = p.Branch
	}
	return year, branch
}
