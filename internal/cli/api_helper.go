package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/prowessninja/smsctl/internal/api"
	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/http"
	"github.com/prowessninja/smsctl/internal/models"
	"github.com/prowessninja/smsctl/internal/permissions"
	"github.com/prowessninja/smsctl/internal/session"
	"github.com/prowessninja/smsctl/internal/util/sanitize"
)

// PermViewUser guards every directory command.
const PermViewUser = "view_user"

// referenceCache is shared by every command in the process.
var referenceCache = session.NewReferenceCache(0)

// loadConfig reads config.csv and merges environment, token file and flags.
// Priority: flags > environment > config file > defaults.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfigCSV(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.MergeWithFlagsAndTokenFile(apiToken, tokenFile, apiBaseURL, "", "", 0)
	if verbose || debug {
		cfg.DetailedLogging = true
	}

	if http.NeedsProxyPassword(cfg) {
		pw, err := promptSecret(bufio.NewReader(os.Stdin), fmt.Sprintf("Proxy password for %s@%s", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// getAPIClient loads configuration and creates an API client.
// This is the standard way to get an API client in CLI commands.
func getAPIClient() (*api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// loadSession fetches the user, permissions and reference data.
func loadSession(ctx context.Context, client *api.Client) (*session.Session, error) {
	sess, err := session.Load(ctx, client, referenceCache, client.Token(), nil)
	if err != nil {
		return nil, describeAPIError(err)
	}
	return sess, nil
}

// directoryScope is the scope and filters a directory command runs with.
type directoryScope struct {
	Filters models.FilterSet
	Scope   session.Scope
}

// resolveDirectoryScope picks the academic year and branch from, in order,
// the flags, the saved session profile (if it belongs to the same server),
// config.csv and the session defaults. The result is saved back to the
// profile so the next run starts where this one did.
func resolveDirectoryScope(sess *session.Session, cfg *config.Config, year, branch, group, search string, pageSize int) directoryScope {
	profilePath := config.DefaultSessionPath()
	profile, err := config.LoadSessionProfile(profilePath)
	if err != nil {
		GetLogger().Warn().Err(err).Msg("Ignoring unreadable session profile")
		profile = &config.SessionProfile{}
	}

	candidates := []session.Scope{{AcademicYear: year, Branch: branch}}
	if profile.BaseURL == "" || profile.BaseURL == cfg.APIBaseURL {
		candidates = append(candidates, session.Scope{AcademicYear: profile.AcademicYear, Branch: profile.Branch})
	}
	candidates = append(candidates, session.Scope{AcademicYear: cfg.AcademicYear, Branch: cfg.Branch})
	scope := sess.ResolveScope(candidates...)

	if profilePath != "" && sess.User != nil {
		updated := &config.SessionProfile{
			BaseURL:      cfg.APIBaseURL,
			UserID:       sess.User.ID.String(),
			Role:         sess.User.Role,
			AcademicYear: scope.AcademicYear,
			Branch:       scope.Branch,
		}
		if err := config.SaveSessionProfile(updated, profilePath); err != nil {
			GetLogger().Debug().Err(err).Msg("Failed to save session profile")
		}
	}

	if pageSize <= 0 {
		pageSize = cfg.PageSize
	}
	return directoryScope{
		Scope: scope,
		Filters: models.FilterSet{
			AcademicYear: scope.AcademicYear,
			Branch:       scope.Branch,
			Group:        group,
			Search:       sanitize.Query(search, constants.MaxSearchLength),
			PageSize:     pageSize,
		},
	}
}

// requirePermissions runs action when the session grants every codename.
func requirePermissions(sess *session.Session, codenames []string, action func(has permissions.Checker) error) error {
	return permissions.Require(sess.Gate, codenames, action)
}

// describeAPIError adds a hint for the failure classes a user can act on.
func describeAPIError(err error) error {
	switch api.Classify(err) {
	case http.ErrorTypeCredential:
		return fmt.Errorf("%w\n  Check your API token (SMS_API_TOKEN, --token or 'smsctl config init')", err)
	case http.ErrorTypeNetwork:
		return fmt.Errorf("%w\n  The API could not be reached; check your network or proxy settings", err)
	default:
		return err
	}
}
