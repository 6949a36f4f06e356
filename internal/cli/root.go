// Package cli provides the command-line interface for smsctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/logging"
	"github.com/prowessninja/smsctl/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiToken   string
	tokenFile  string // Path to file containing the API token
	apiBaseURL string
	verbose    bool
	debug      bool
	logLevel   string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smsctl",
		Short: "smsctl - school management directory client",
		Long: `smsctl ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for the school management API.

Browse, search and export the user directory for an academic year and
branch, check your permissions and fetch your role's dashboard.

Authentication:
  Set SMS_API_TOKEN, pass --token or --token-file, or run 'smsctl config init'.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env in the working directory feeds SMS_API_TOKEN / SMS_API_URL
			if err := config.LoadDotEnv(""); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}

			logger = logging.NewDefaultCLILogger()
			level := logging.ParseLevel(logLevel)
			if verbose || debug {
				level = zerolog.DebugLevel
			}
			logging.SetGlobalLevel(level)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing the API token")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("SMSCTL_LOG_LEVEL"), "Log level: debug, info, warn or error")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd())
	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// shellCompletions maps each supported shell to its cobra generator.
var shellCompletions = []struct {
	shell string
	gen   func(root *cobra.Command, w io.Writer) error
}{
	{"bash", func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletion(w) }},
	{"zsh", func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) }},
	{"fish", func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) }},
	{"powershell", func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletion(w) }},
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for smsctl commands",
		Long: `Generate shell completion scripts for smsctl.

QUICK START:

  zsh:
    smsctl completion zsh > "${fpath[1]}/_smsctl"

  bash:
    smsctl completion bash | sudo tee /etc/bash_completion.d/smsctl

  fish:
    smsctl completion fish > ~/.config/fish/completions/smsctl.fish

  PowerShell:
    smsctl completion powershell | Out-String | Invoke-Expression`,
	}
	for _, sc := range shellCompletions {
		gen := sc.gen
		cmd.AddCommand(&cobra.Command{
			Use:   sc.shell,
			Short: "Generate " + sc.shell + " completion script",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				return gen(c.Root(), c.OutOrStdout())
			},
		})
	}
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so that a second Ctrl+C does not block the sender
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)
	cancelFunc()

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newPermsCmd())
	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newConfigCmd())

	// Add shortcuts for convenience
	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}
