package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Environment variables read by smsctl.
const (
	EnvAPIToken  = "SMS_API_TOKEN"
	EnvAPIURL    = "SMS_API_URL"
	EnvConfigDir = "SMSCTL_CONFIG_DIR"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ResolveTokenSource returns the API token and where it came from.
//
// Priority matches MergeWithFlagsAndTokenFile:
//  1. flag
//  2. environment (SMS_API_TOKEN)
//  3. token-file (--token-file)
//  4. default-token-file
//
// Returns "", "" when no source has a token.
func ResolveTokenSource(token, tokenFilePath string) (string, string) {
	if token != "" {
		return token, "flag"
	}
	if env := os.Getenv(EnvAPIToken); env != "" {
		return env, "environment"
	}
	if tokenFilePath != "" {
		if key, err := ReadTokenFile(tokenFilePath); err == nil {
			return key, "token-file"
		}
	}
	if path := GetDefaultTokenPath(); path != "" {
		if key, err := ReadTokenFile(path); err == nil {
			return key, "default-token-file"
		}
	}
	return "", ""
}

// ReadTokenFile reads an API token from a file
// The file should contain only the API token (whitespace is trimmed)
// Warns if file permissions are too open (not 0600 on Unix systems)
func ReadTokenFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}

	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		log.Warn().Str("path", path).Str("mode", fmt.Sprintf("%04o", mode)).
			Msg("Token file is readable by others; run chmod 600 on it")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}

// WriteTokenFile writes an API token to a file with secure permissions (0600)
func WriteTokenFile(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("cannot write empty token")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}
