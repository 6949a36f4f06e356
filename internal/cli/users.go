package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prowessninja/smsctl/internal/api"
	"github.com/prowessninja/smsctl/internal/connectivity"
	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/export"
	"github.com/prowessninja/smsctl/internal/http"
	"github.com/prowessninja/smsctl/internal/logging"
	"github.com/prowessninja/smsctl/internal/models"
	"github.com/prowessninja/smsctl/internal/permissions"
	"github.com/prowessninja/smsctl/internal/progress"
	"github.com/prowessninja/smsctl/internal/session"
	"github.com/prowessninja/smsctl/internal/state"
	"github.com/prowessninja/smsctl/internal/ui"
)

// newUsersCmd creates the 'users' command group.
func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"directory"},
		Short:   "Browse, search and export the user directory",
		Long: `User directory commands.

Every command works on one academic year and branch. Without --year and
--branch the last scope you used is reused, then config.csv, then the
current academic year and your own branch.

Commands:
  list    - Print users as a two-column grid
  browse  - Interactive directory with search and infinite scroll
  export  - Write users to a file, S3 or Azure Blob Storage`,
	}

	cmd.AddCommand(newUsersListCmd())
	cmd.AddCommand(newUsersBrowseCmd())
	cmd.AddCommand(newUsersExportCmd())
	return cmd
}

// directoryFlags are shared by every users subcommand.
type directoryFlags struct {
	year     string
	branch   string
	group    string
	search   string
	pageSize int
}

func (f *directoryFlags) register(cmd *cobra.Command, withSearch bool) {
	cmd.Flags().StringVarP(&f.year, "year", "y", "", "Academic year id")
	cmd.Flags().StringVarP(&f.branch, "branch", "b", "", "Branch id")
	cmd.Flags().StringVarP(&f.group, "group", "g", "", "Only users in this group")
	if withSearch {
		cmd.Flags().StringVarP(&f.search, "search", "s", "", "Search by name, email or phone")
	}
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, fmt.Sprintf("Users per request (1-%d, default from config)", constants.MaxPageSize))
}

func (f *directoryFlags) validate() error {
	if f.pageSize < 0 || f.pageSize > constants.MaxPageSize {
		return fmt.Errorf("--page-size must be between 1 and %d, got %d", constants.MaxPageSize, f.pageSize)
	}
	return nil
}

// withDirectory loads the client and session, checks view_user and runs fn
// with the resolved scope.
func withDirectory(ctx context.Context, flags *directoryFlags, fn func(client *api.Client, sess *session.Session, ds directoryScope) error) error {
	if err := flags.validate(); err != nil {
		return err
	}
	client, err := getAPIClient()
	if err != nil {
		return err
	}
	sess, err := loadSession(ctx, client)
	if err != nil {
		return err
	}
	return requirePermissions(sess, []string{PermViewUser}, func(permissions.Checker) error {
		ds := resolveDirectoryScope(sess, client.GetConfig(), flags.year, flags.branch, flags.group, flags.search, flags.pageSize)
		if !ds.Filters.HasScope() {
			return fmt.Errorf("no academic year or branch available; pass --year and --branch")
		}
		GetLogger().Debug().
			Str("academic_year", ds.Scope.AcademicYear).
			Str("branch", ds.Scope.Branch).
			Msg("Directory scope")
		return fn(client, sess, ds)
	})
}

// collectWithProgress walks the directory and shows a bar while doing so.
func collectWithProgress(ctx context.Context, client *api.Client, filters models.FilterSet, maxPages int, reporter progress.Reporter) ([]models.User, *int, error) {
	started := false
	users, count, err := export.Collect(ctx, client, client.Token(), filters, maxPages, func(page *models.PageResult, loaded int) {
		if !started {
			total := int64(-1)
			if page.Count != nil {
				total = int64(*page.Count)
			}
			reporter.Start(total, "Fetching users")
			started = true
		}
		reporter.Update(int64(loaded))
	})
	if started {
		reporter.Finish()
	}
	if err != nil {
		if len(users) == 0 {
			return nil, nil, describeAPIError(err)
		}
		reporter.Error(err)
		GetLogger().Warn().Err(err).Int("loaded", len(users)).Msg("Directory walk stopped early")
	}
	return users, count, nil
}

// newUsersListCmd creates the 'users list' command.
func newUsersListCmd() *cobra.Command {
	var (
		flags       directoryFlags
		pages       int
		all         bool
		jsonOutput  bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users in a two-column grid",
		Long: `Print the user directory for an academic year and branch.

The first page is printed by default. Use --pages to fetch more or --all to
follow the list to its end.

Examples:
  smsctl users list
  smsctl users list --year 5 --branch 2 --search priya
  smsctl users list --group teacher --all --json > teachers.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 && !all {
				return fmt.Errorf("--pages must be at least 1")
			}
			ctx := GetContext()

			return withDirectory(ctx, &flags, func(client *api.Client, sess *session.Session, ds directoryScope) error {
				maxPages := pages
				reporter := progress.Reporter(progress.NewNoOpProgress())
				if all {
					maxPages = 0
				}
				if (all || pages > 1) && !jsonOutput {
					reporter = progress.New()
				}

				users, count, err := collectWithProgress(ctx, client, ds.Filters, maxPages, reporter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if users == nil {
						users = []models.User{}
					}
					if err := enc.Encode(users); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "%s · %s\n", sess.YearName(ds.Scope.AcademicYear), sess.BranchName(ds.Scope.Branch))
					ui.RenderTable(out, users, false)
					if count != nil {
						fmt.Fprintf(out, "Showing %d of %d users\n", len(users), *count)
					} else {
						fmt.Fprintf(out, "Showing %d users\n", len(users))
					}
				}

				if showMetrics {
					return client.WriteMetrics(cmd.ErrOrStderr())
				}
				return nil
			})
		},
	}

	flags.register(cmd, true)
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to fetch")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Fetch every page")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the records as JSON")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print request metrics to stderr when done")
	return cmd
}

// offlineDeferrer parks failed page fetches on the resumer and tells the
// monitor right away so the offline banner does not wait for a probe.
type offlineDeferrer struct {
	resumer *connectivity.Resumer
	monitor *connectivity.Monitor
}

func (d offlineDeferrer) Defer(label string, action func()) {
	d.resumer.Defer(label, action)
	d.monitor.ReportFailure(fmt.Errorf("%s failed: API unreachable", label))
}

// newUsersBrowseCmd creates the 'users browse' command.
func newUsersBrowseCmd() *cobra.Command {
	var flags directoryFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the directory interactively",
		Long: `Open the interactive directory.

Type / to search (results update 400ms after you stop typing), use the
arrow keys to move, and scroll down to load more users. Logs are written to
the smsctl log directory while the browser is open.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()

			return withDirectory(ctx, &flags, func(client *api.Client, sess *session.Session, ds directoryScope) error {
				cfg := client.GetConfig()
				bus := events.NewEventBus(constants.EventBusDefaultBuffer)
				defer bus.Close()

				// The terminal belongs to the browser; send logs to a file.
				fileLog, err := logging.NewFileLogger("browse.log", nil)
				if err != nil {
					GetLogger().Warn().Err(err).Msg("Logging disabled while browsing")
					fileLog = logging.NewLogger(logging.ModeTUI, nil)
					fileLog.SetOutput(io.Discard)
				}
				defer fileLog.Close()
				prevLog := log.Logger
				log.Logger = fileLog.Zerolog()
				defer func() { log.Logger = prevLog }()

				resumer := connectivity.NewResumer()
				monitor := connectivity.NewMonitor(client, resumer, bus, cfg.ProbeInterval())

				dir := state.NewDirectoryState(state.DirectoryConfig{
					Fetcher:        client,
					Token:          client.Token(),
					PageSize:       ds.Filters.PageSize,
					EventBus:       bus,
					Logger:         fileLog,
					Deferrer:       offlineDeferrer{resumer: resumer, monitor: monitor},
					RequestTimeout: cfg.RequestTimeout(),
				})
				defer dir.Wait()
				defer dir.Close()

				title := fmt.Sprintf("Users · %s · %s", sess.YearName(ds.Scope.AcademicYear), sess.BranchName(ds.Scope.Branch))
				model := ui.NewBrowseModel(dir, bus, cfg.SearchDebounce(), title)
				defer model.Close()

				dir.SetGroup(ds.Filters.Group)
				dir.Mount(ds.Scope.AcademicYear, ds.Scope.Branch)

				monCtx, stopMonitor := context.WithCancel(ctx)
				defer stopMonitor()
				go func() { _ = monitor.Run(monCtx) }()

				p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
				_, err = p.Run()
				if n := bus.Dropped(); n > 0 {
					fileLog.Warn().Int64("dropped", n).Msg("Browser fell behind the event bus")
				}
				if err != nil && ctx.Err() == nil {
					return fmt.Errorf("directory browser failed: %w", err)
				}
				return nil
			})
		},
	}

	flags.register(cmd, false)
	return cmd
}

// newUsersExportCmd creates the 'users export' command.
func newUsersExportCmd() *cobra.Command {
	var (
		flags  directoryFlags
		to     string
		format string
		pages  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export users to a file, S3 or Azure Blob Storage",
		Long: `Fetch the directory and write it as CSV or JSON.

Destinations:
  users.csv                      local file
  s3://bucket/path/users.csv     Amazon S3 (standard AWS credential chain)
  azblob://container/users.json  Azure Blob Storage (AZURE_STORAGE_ACCOUNT
                                 and AZURE_STORAGE_SAS_TOKEN)

The format follows the file extension unless --format is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := export.ParseDestination(to)
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format, to)
			if err != nil {
				return err
			}
			ctx := GetContext()

			return withDirectory(ctx, &flags, func(client *api.Client, sess *session.Session, ds directoryScope) error {
				var httpClient *nethttp.Client
				if dest.Scheme != export.SchemeFile {
					c, err := http.ConfigureHTTPClient(client.GetConfig())
					if err != nil {
						return fmt.Errorf("failed to configure HTTP client: %w", err)
					}
					httpClient = c
				}
				sink, err := export.NewSink(ctx, dest, httpClient)
				if err != nil {
					return err
				}

				users, _, err := collectWithProgress(ctx, client, ds.Filters, pages, progress.New())
				if err != nil {
					return err
				}
				if err := export.Write(ctx, sink, users, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d users to %s\n", len(users), sink)
				return nil
			})
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVarP(&to, "to", "o", "", "Destination path or URL (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "csv or json (default from extension)")
	cmd.Flags().IntVarP(&pages, "pages", "p", 0, "Stop after this many pages (0 = all)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
