package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/http"
	"github.com/prowessninja/smsctl/internal/models"
	"github.com/prowessninja/smsctl/internal/ratelimit"
)

// API paths relative to the base URL.
const (
	PathCurrentUser   = "/api/users/me/"
	PathAcademicYears = "/api/academic-years/"
	PathBranches      = "/api/branches/"
	PathPermissions   = "/api/permissions/"
	PathPing          = "/api/"
)

var validate = validator.New()

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct{}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Error().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn().Fields(keysAndValues).Msg("retry: " + msg)
}

// Client is the school-management API client. It is safe for concurrent use.
type Client struct {
	httpClient  *nethttp.Client // retrying client for API calls
	probeClient *nethttp.Client // single-shot client for connectivity probes
	config      *config.Config
	baseURL     string
	usersPath   string
	token       string
	limiter     *ratelimit.RateLimiter
	metrics     *apiMetrics
}

// NewClient creates a new API client
func NewClient(cfg *config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}

	// Configure HTTP client with proxy support
	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// Wrap with retry logic. The passthrough handler hands the final response
	// back unchanged so a 5xx still surfaces as an HTTPError with its body.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{}

	usersPath := cfg.UsersPath
	if usersPath == "" {
		usersPath = constants.DefaultUsersPath
	}

	return &Client{
		httpClient:  retryClient.StandardClient(),
		probeClient: httpClient,
		config:      cfg,
		baseURL:     strings.TrimSuffix(cfg.APIBaseURL, "/"),
		usersPath:   usersPath,
		token:       cfg.Token,
		limiter:     ratelimit.NewAPIRateLimiter(cfg.RequestsPerSec),
		metrics:     newAPIMetrics(),
	}, nil
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// Token returns the token the client was configured with.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with authentication and rate limiting.
// Transport failures and expired deadlines come back as *NetworkError;
// explicit cancellation is returned wrapped as is. Status codes are left to
// the caller. endpoint names the call in metrics.
func (c *Client) doRequest(ctx context.Context, method, endpoint, rawURL, token string, body interface{}) (*nethttp.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &NetworkError{Method: method, URL: rawURL, Err: err}
		}
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, 0, time.Since(start).Seconds())
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		log.Debug().Str("method", method).Str("endpoint", endpoint).Err(err).Msg("API call failed")
		return nil, &NetworkError{Method: method, URL: rawURL, Err: err}
	}
	c.metrics.observe(endpoint, resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		c.metrics.throttled.Inc()
		if wait := parseRetryAfter(resp.Header.Get("Retry-After")); wait > 0 {
			c.limiter.SetCooldown(wait)
		}
		log.Warn().Str("method", method).Str("endpoint", endpoint).
			Str("retry_after", resp.Header.Get("Retry-After")).Msg("Throttled by server")
	}

	return resp, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := nethttp.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// readJSON reads the whole response body and classifies the outcome:
// non-2xx becomes *HTTPError, a truncated body *NetworkError, and a body
// that does not decode into v *MalformedResponseError.
func readJSON(resp *nethttp.Response, v interface{}) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: resp.Request.Method, URL: resp.Request.URL.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newMalformedResponseError(resp.StatusCode, data, err)
	}
	return nil
}

// EncodeFilters builds the directory query string. Empty values are left
// out and keys are emitted in sorted order.
func EncodeFilters(filters models.FilterSet) string {
	return filters.Query().Encode()
}

// UsersURL returns the full directory URL for filters.
func (c *Client) UsersURL(filters models.FilterSet) string {
	u := c.baseURL + c.usersPath
	if q := EncodeFilters(filters); q != "" {
		u += "?" + q
	}
	return u
}

// FetchPage retrieves one page of the user directory.
//
// Errors:
//   - ErrEmptyToken before any network call when token is blank
//   - *HTTPError for non-2xx responses, carrying the decoded body
//   - *NetworkError when the request never produced a response
//   - *MalformedResponseError when a 2xx body is not valid JSON
func (c *Client) FetchPage(ctx context.Context, token string, filters models.FilterSet) (*models.PageResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyToken
	}
	if err := validate.Struct(filters); err != nil {
		return nil, fmt.Errorf("invalid filters: %w", err)
	}

	resp, err := c.doRequest(ctx, nethttp.MethodGet, "users", c.UsersURL(filters), token, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		models.PageResult
		Results json.RawMessage `json:"results"`
	}
	if err := readJSON(resp, &envelope); err != nil {
		return nil, err
	}

	page := envelope.PageResult
	page.Results = decodeUsers(envelope.Results)

	c.metrics.pages.Inc()
	return &page, nil
}

// decodeUsers decodes the results array record by record. A missing or
// non-array value yields an empty slice; records that do not decode are
// skipped.
func decodeUsers(raw json.RawMessage) []models.User {
	users := []models.User{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return users
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		log.Debug().Err(err).Msg("Directory results is not an array; treating page as empty")
		return users
	}
	for i, record := range records {
		var u models.User
		if err := json.Unmarshal(record, &u); err != nil {
			log.Debug().Err(err).Int("index", i).Msg("Skipping undecodable directory record")
			continue
		}
		users = append(users, u)
	}
	return users
}

// GetCurrentUser returns the profile of the token's owner.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.getJSON(ctx, "me", PathCurrentUser, &profile); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &profile, nil
}

// GetPermissions returns the raw permission payload for the current user.
// The payload is either a list of codes or an object grouping codes by
// module; see package permissions.
func (c *Client) GetPermissions(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "permissions", PathPermissions, &raw); err != nil {
		return nil, fmt.Errorf("get permissions: %w", err)
	}
	return raw, nil
}

// ListAcademicYears returns every academic year visible to the user.
func (c *Client) ListAcademicYears(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := listAll[models.AcademicYear](ctx, c, "academic_years", PathAcademicYears)
	if err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// ListBranches returns every branch visible to the user.
func (c *Client) ListBranches(ctx context.Context) ([]models.Branch, error) {
	branches, err := listAll[models.Branch](ctx, c, "branches", PathBranches)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// Ping checks that the API host answers at all. Any HTTP response counts as
// reachable; only transport failures are reported. Probes skip the rate
// limiter and the retry layer.
func (c *Client) Ping(ctx context.Context) error {
	rawURL := c.baseURL + PathPing
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return &NetworkError{Method: nethttp.MethodHead, URL: rawURL, Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, v interface{}) error {
	if strings.TrimSpace(c.token) == "" {
		return ErrEmptyToken
	}
	resp, err := c.doRequest(ctx, nethttp.MethodGet, endpoint, c.resolve(path), c.token, nil)
	if err != nil {
		return err
	}
	return readJSON(resp, v)
}

// resolve accepts either an API path or an absolute "next" link.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// listAll fetches a reference collection. Endpoints answer either with a
// bare JSON array or with a paginated envelope; envelopes are followed
// through their next links.
func listAll[T any](ctx context.Context, c *Client, endpoint, path string) ([]T, error) {
	var all []T
	next := path
	for page := 1; next != ""; page++ {
		if page > constants.MaxPaginationPages {
			return nil, fmt.Errorf("pagination limit exceeded: fetched %d pages", constants.MaxPaginationPages)
		}
		if page == constants.PaginationWarningThreshold {
			log.Warn().Str("endpoint", endpoint).Int("page", page).Msg("Approaching pagination limit")
		}

		var raw json.RawMessage
		if err := c.getJSON(ctx, endpoint, next, &raw); err != nil {
			return nil, err
		}

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, newMalformedResponseError(nethttp.StatusOK, trimmed, err)
			}
			return append(all, items...), nil
		}

		var envelope models.ReferenceList[T]
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, newMalformedResponseError(nethttp.StatusOK, trimmed, err)
		}
		all = append(all, envelope.Results...)
		next = ""
		if envelope.Next != nil {
			next = *envelope.Next
		}
	}
	return all, nil
}
