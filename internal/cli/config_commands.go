// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/prowessninja/smsctl/internal/api"
	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage smsctl configuration",
		Long: `Configuration management commands for smsctl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path
  set   - Change a single setting`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())
	configCmd.AddCommand(newConfigSetCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetDefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for smsctl.

The configuration will be saved to ~/.config/smsctl/config.csv and the API
token to ~/.config/smsctl/token (mode 0600).

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("smsctl Configuration Setup")
			fmt.Println("==========================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			cfg := config.Default()

			var token string
			for token == "" {
				t, err := promptSecret(reader, "API token (required)")
				if err != nil {
					return err
				}
				token = t
				if token == "" {
					fmt.Println("  Error: API token is required")
				}
			}

			cfg.APIBaseURL = promptLine(reader, "API base URL", cfg.APIBaseURL)
			if v, err := strconv.Atoi(promptLine(reader, "Page size", strconv.Itoa(cfg.PageSize))); err == nil && v > 0 && v <= constants.MaxPageSize {
				cfg.PageSize = v
			}
			cfg.AcademicYear = promptLine(reader, "Default academic year id (blank = current)", "")
			cfg.Branch = promptLine(reader, "Default branch id (blank = your branch)", "")

			fmt.Println()
			if promptYesNo(reader, "Configure proxy?") {
				fmt.Println("Proxy modes: no-proxy, system, basic, ntlm")
				cfg.ProxyMode = promptLine(reader, "Proxy mode", "system")
				if cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "system" {
					cfg.ProxyHost = promptLine(reader, "Proxy host", "")
					if v, err := strconv.Atoi(promptLine(reader, "Proxy port", "8080")); err == nil && v > 0 {
						cfg.ProxyPort = v
					}
					cfg.ProxyUser = promptLine(reader, "Proxy user (blank = none)", "")
				}
			}

			if err := cfg.ValidateSettings(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			tokenPath := config.GetDefaultTokenPath()
			if err := config.WriteTokenFile(tokenPath, token); err != nil {
				return fmt.Errorf("failed to save API token file: %w", err)
			}
			logger.Info().Str("path", tokenPath).Msg("API token saved")

			// Token is kept out of config.csv
			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Println()
			fmt.Printf("✓ Configuration saved to: %s\n", path)
			fmt.Printf("✓ API token saved to: %s\n", tokenPath)
			fmt.Println()
			fmt.Println("Test your configuration with: smsctl config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/smsctl/config.csv)
  2. Environment variables (SMS_API_TOKEN, SMS_API_URL, .env)
  3. Command-line flags (--token, --token-file, --api-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.LoadConfigCSV(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlagsAndTokenFile(apiToken, tokenFile, apiBaseURL, "", "", 0)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "API Settings:")
			fmt.Fprintf(out, "  API Base URL: %s\n", cfg.APIBaseURL)
			fmt.Fprintf(out, "  Users Path:   %s\n", cfg.UsersPath)
			if cfg.Token != "" {
				// Never display any portion of the token
				fmt.Fprintf(out, "  API Token:    <set (%d chars)>\n", len(cfg.Token))
			} else {
				fmt.Fprintln(out, "  API Token:    <not set>")
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Directory Settings:")
			fmt.Fprintf(out, "  Page Size:       %d\n", cfg.PageSize)
			fmt.Fprintf(out, "  Search Debounce: %s\n", cfg.SearchDebounce())
			fmt.Fprintf(out, "  Academic Year:   %s\n", orDefault(cfg.AcademicYear, "(current)"))
			fmt.Fprintf(out, "  Branch:          %s\n", orDefault(cfg.Branch, "(your branch)"))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Advanced Settings:")
			fmt.Fprintf(out, "  Max Retries:      %d\n", cfg.MaxRetries)
			fmt.Fprintf(out, "  Request Timeout:  %s\n", cfg.RequestTimeout())
			fmt.Fprintf(out, "  Probe Interval:   %s\n", cfg.ProbeInterval())
			fmt.Fprintf(out, "  Requests/sec:     %g\n", cfg.RequestsPerSec)
			fmt.Fprintln(out)

			if err := cfg.ValidateSettings(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n\n", err)
			}

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with current configuration.

Use this to verify your API token and network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			fmt.Println("Testing API Connection")
			fmt.Println("======================")
			fmt.Println()

			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}

			fmt.Printf("API URL: %s\n", apiClient.BaseURL())
			fmt.Println("Testing connection...")
			fmt.Println()

			ctx, cancel := context.WithTimeout(GetContext(), constants.APIConnectionTestTimeout)
			defer cancel()

			user, err := apiClient.GetCurrentUser(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				fmt.Println("✗ Connection FAILED")
				fmt.Printf("  Error: %v\n", describeAPIError(err))
				return fmt.Errorf("connection test failed")
			}

			logger.Info().Msg("Connection test successful")

			fmt.Println("✓ Connection SUCCESSFUL")
			fmt.Println()
			fmt.Println("User Information:")
			fmt.Printf("  Username: %s\n", user.Username)
			if user.Email != "" {
				fmt.Printf("  Email:    %s\n", user.Email)
			}
			if user.Role != "" {
				fmt.Printf("  Role:     %s\n", user.Role)
			}
			if _, err := api.DashboardPath(user.Role); err != nil {
				fmt.Printf("  Note: role %q has no dashboard\n", user.Role)
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				fmt.Println("Default configuration path:")
			} else {
				fmt.Println("Configuration path (from --config flag):")
			}
			path := configPath()
			fmt.Printf("  %s\n", path)
			fmt.Println()

			if fileInfo, err := os.Stat(path); err == nil {
				fmt.Println("Status: ✓ File exists")
				fmt.Printf("Size:   %d bytes\n", fileInfo.Size())
				fmt.Printf("Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: File does not exist")
				fmt.Println()
				fmt.Println("Create a configuration file with: smsctl config init")
			}
			if p := config.DefaultSessionPath(); p != "" {
				fmt.Printf("Session profile: %s\n", p)
			}
			return nil
		},
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a single configuration value",
		Long: `Change one key in config.csv.

Keys: api_base_url, users_path, page_size, search_debounce_ms, academic_year,
branch, proxy_mode, proxy_host, proxy_port, proxy_user, no_proxy,
proxy_warmup, max_retries, request_timeout_s, probe_interval_s,
requests_per_sec, detailed_logging

Examples:
  smsctl config set page_size 20
  smsctl config set branch 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.LoadConfigCSV(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.ValidateSettings(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], args[1])
			return nil
		},
	}
}
