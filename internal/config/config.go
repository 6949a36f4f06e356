// Package config provides configuration management for smsctl.
package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/prowessninja/smsctl/internal/constants"
)

// Config represents the smsctl configuration
type Config struct {
	// API settings
	Token      string
	APIBaseURL string `validate:"required,url"`
	UsersPath  string `validate:"required,startswith=/"`

	// Directory behaviour
	PageSize         int `validate:"gte=1,lte=100"`
	SearchDebounceMs int `validate:"gte=0,lte=5000"`

	// Default scope used when no session profile has been saved yet
	AcademicYear string
	Branch       string

	// Proxy settings
	ProxyMode     string `validate:"oneof=no-proxy system ntlm basic"`
	ProxyHost     string
	ProxyPort     int `validate:"gte=0,lte=65535"`
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Retry and timing settings
	MaxRetries      int `validate:"gte=0,lte=10"`
	RequestTimeoutS int `validate:"gte=0"`
	ProbeIntervalS  int `validate:"gte=0"`
	RequestsPerSec  float64
	DetailedLogging bool
}

// Validation errors
var (
	ErrMissingToken   = errors.New("API token is required (set via SMS_API_TOKEN env var, --token or --token-file flag)")
	ErrMissingBaseURL = errors.New("API base URL is required")
)

var validate = validator.New()

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:       "https://sms.prowessninja.com",
		UsersPath:        constants.DefaultUsersPath,
		PageSize:         constants.DefaultPageSize,
		SearchDebounceMs: int(constants.SearchDebounceWindow / time.Millisecond),
		ProxyMode:        "no-proxy",
		MaxRetries:       constants.MaxRetries,
		RequestTimeoutS:  int(constants.APIContextTimeout / time.Second),
		ProbeIntervalS:   int(constants.ProbeInterval / time.Second),
		RequestsPerSec:   constants.APIRequestsPerSecond,
	}
}

// LoadConfigCSV loads configuration from a CSV file
// CSV format: key,value pairs
func LoadConfigCSV(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read config CSV: %w", err)
	}

	for i, record := range records {
		if i == 0 {
			// Skip header row if it looks like a header
			if len(record) >= 2 && strings.ToLower(record[0]) == "key" {
				continue
			}
		}
		if len(record) < 2 {
			continue
		}
		if err := cfg.Set(record[0], record[1]); err != nil {
			log.Warn().Err(err).Str("path", path).Int("line", i+1).Msg("Skipping invalid config entry")
		}
	}

	return cfg, nil
}

// Set applies a single key,value pair. Unknown keys are an error; secrets
// are ignored with a warning so they never round-trip through config.csv.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	value = strings.TrimSpace(value)

	atoi := func(dst *int) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, value)
		}
		*dst = v
		return nil
	}

	switch key {
	case "api_base_url":
		c.APIBaseURL = value
	case "users_path":
		c.UsersPath = value
	case "page_size":
		return atoi(&c.PageSize)
	case "search_debounce_ms":
		return atoi(&c.SearchDebounceMs)
	case "academic_year":
		c.AcademicYear = value
	case "branch":
		c.Branch = value
	case "proxy_mode":
		c.ProxyMode = value
	case "proxy_host":
		c.ProxyHost = value
	case "proxy_port":
		return atoi(&c.ProxyPort)
	case "proxy_user":
		c.ProxyUser = value
	case "proxy_password":
		if value != "" {
			log.Warn().Msg("proxy_password in config file is ignored; you will be prompted at runtime")
		}
	case "no_proxy":
		c.NoProxy = value
	case "proxy_warmup":
		c.ProxyWarmup = parseBool(value)
	case "max_retries":
		return atoi(&c.MaxRetries)
	case "request_timeout_s":
		return atoi(&c.RequestTimeoutS)
	case "probe_interval_s":
		return atoi(&c.ProbeIntervalS)
	case "requests_per_sec":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", key, value)
		}
		c.RequestsPerSec = v
	case "detailed_logging":
		c.DetailedLogging = parseBool(value)
	case "token", "api_token":
		if value != "" {
			log.Warn().Str("key", key).Msg("Token in config file is ignored; use SMS_API_TOKEN or --token-file")
		}
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// SaveConfigCSV saves configuration to a CSV file
// CSV format: key,value pairs
func SaveConfigCSV(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"key", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// SECURITY: the token and proxy password are intentionally NOT saved
	records := [][]string{
		{"api_base_url", cfg.APIBaseURL},
		{"users_path", cfg.UsersPath},
		{"page_size", strconv.Itoa(cfg.PageSize)},
		{"search_debounce_ms", strconv.Itoa(cfg.SearchDebounceMs)},
		{"academic_year", cfg.AcademicYear},
		{"branch", cfg.Branch},
		{"proxy_mode", cfg.ProxyMode},
		{"proxy_host", cfg.ProxyHost},
		{"proxy_port", strconv.Itoa(cfg.ProxyPort)},
		{"proxy_user", cfg.ProxyUser},
		{"no_proxy", cfg.NoProxy},
		{"proxy_warmup", strconv.FormatBool(cfg.ProxyWarmup)},
		{"max_retries", strconv.Itoa(cfg.MaxRetries)},
		{"request_timeout_s", strconv.Itoa(cfg.RequestTimeoutS)},
		{"probe_interval_s", strconv.Itoa(cfg.ProbeIntervalS)},
		{"requests_per_sec", strconv.FormatFloat(cfg.RequestsPerSec, 'f', -1, 64)},
		{"detailed_logging", strconv.FormatBool(cfg.DetailedLogging)},
	}

	for _, record := range records {
		// Only write non-empty values to keep file clean
		if record[1] != "" && record[1] != "0" && record[1] != "false" {
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	return nil
}

// MergeWithFlagsAndTokenFile merges config with flags, token file, and environment variables
// Token priority (highest to lowest):
//  1. --token flag (command line)
//  2. SMS_API_TOKEN environment variable
//  3. --token-file flag (explicit token file path)
//  4. Default token file (~/.config/smsctl/token)
func (c *Config) MergeWithFlagsAndTokenFile(token, tokenFilePath, apiBaseURL, proxyMode, proxyHost string, proxyPort int) {
	if resolved, source := ResolveTokenSource(token, tokenFilePath); resolved != "" {
		c.Token = resolved
		if source != "" && c.DetailedLogging {
			log.Debug().Str("source", source).Msg("Using API token")
		}
	}

	if envURL := os.Getenv(EnvAPIURL); envURL != "" {
		c.APIBaseURL = envURL
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}

	if apiBaseURL != "" {
		c.APIBaseURL = apiBaseURL
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if proxyHost != "" {
		c.ProxyHost = proxyHost
	}
	if proxyPort > 0 {
		c.ProxyPort = proxyPort
	}

	// Ensure HTTPS scheme
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
}

// parseProxyURL parses a proxy URL from environment variable
func (c *Config) parseProxyURL(proxyURL string) {
	proxyURL = strings.TrimPrefix(proxyURL, "http://")
	proxyURL = strings.TrimPrefix(proxyURL, "https://")

	parts := strings.Split(proxyURL, ":")
	if len(parts) >= 1 {
		c.ProxyHost = parts[0]
	}
	if len(parts) >= 2 {
		if port, err := strconv.Atoi(parts[1]); err == nil {
			c.ProxyPort = port
		}
	}
	if c.ProxyHost != "" && c.ProxyMode == "no-proxy" {
		c.ProxyMode = "system"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	return c.ValidateSettings()
}

// ValidateSettings checks everything except the token. Used by 'config show'
// and 'config set', which must work before a token has been stored.
func (c *Config) ValidateSettings() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingBaseURL
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %q fails %q", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return err
	}
	return nil
}

// SearchDebounce returns the configured debounce window.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutS <= 0 {
		return constants.APIContextTimeout
	}
	return time.Duration(c.RequestTimeoutS) * time.Second
}

// ProbeInterval returns the connectivity probe interval.
func (c *Config) ProbeInterval() time.Duration {
	if c.ProbeIntervalS <= 0 {
		return constants.ProbeInterval
	}
	return time.Duration(c.ProbeIntervalS) * time.Second
}

// ConfigDir is the standard configuration directory name
const ConfigDir = "smsctl"

// getConfigDir returns the platform-appropriate config directory.
// - Windows: %APPDATA%\smsctl
// - Unix: ~/.config/smsctl (XDG standard)
func getConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return "config.csv"
	}
	return filepath.Join(configDir, "config.csv")
}

// GetDefaultTokenPath returns the default token file path.
// This is where 'config init' saves the API token.
func GetDefaultTokenPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "token")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir := getConfigDir()
	if configDir == "" {
		return fmt.Errorf("could not determine config directory")
	}
	return os.MkdirAll(configDir, 0700)
}
