package state

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prowessninja/smsctl/internal/api"
	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/logging"
	"github.com/prowessninja/smsctl/internal/models"
)

// PageFetcher retrieves one page of the user directory.
// *api.Client satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, token string, filters models.FilterSet) (*models.PageResult, error)
}

// Deferrer parks an action until connectivity returns.
// *connectivity.Resumer satisfies it.
type Deferrer interface {
	Defer(label string, action func())
}

// Status is the pagination state for the current filter epoch.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// DirectoryConfig configures a DirectoryState.
type DirectoryConfig struct {
	Fetcher        PageFetcher
	Token          string
	PageSize       int // 0 means constants.DefaultPageSize
	EventBus       *events.EventBus
	Logger         *logging.Logger
	Deferrer       Deferrer      // optional; network failures are parked here
	RequestTimeout time.Duration // per fetch; 0 means constants.APIContextTimeout
}

// fetchRequest is one page fetch tagged with the epoch it belongs to.
type fetchRequest struct {
	generation uint64
	filters    models.FilterSet
}

// DirectoryState is the pagination controller for the user directory.
// It owns the filter set, the accumulated list and the has-more flag.
// Fetches run on their own goroutine; results from an older filter epoch
// are dropped. Thread-safe for concurrent access.
type DirectoryState struct {
	fetcher  PageFetcher
	token    string
	eventBus *events.EventBus
	log      zerolog.Logger
	deferrer Deferrer
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Current state
	filters    models.FilterSet // Page is the last page merged, 0 before the first
	users      []models.User
	count      *int
	hasMore    bool
	loading    bool
	mounted    bool
	closed     bool
	generation uint64
	lastError  error

	mu sync.Mutex
}

// NewDirectoryState creates a new DirectoryState. Nothing is fetched until
// Mount.
func NewDirectoryState(cfg DirectoryConfig) *DirectoryState {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.APIContextTimeout
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "directory").Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DirectoryState{
		fetcher:  cfg.Fetcher,
		token:    cfg.Token,
		eventBus: cfg.EventBus,
		log:      logger,
		deferrer: cfg.Deferrer,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		filters:  models.FilterSet{PageSize: pageSize},
		users:    make([]models.User, 0),
		hasMore:  true,
	}
}

// Mount attaches the controller to its screen with the session's academic
// year and branch. The first page is fetched as soon as both are known,
// which may be later via SetAcademicYear or SetBranch.
func (s *DirectoryState) Mount(academicYear, branch string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.filters.AcademicYear = academicYear
	s.filters.Branch = branch
	req := s.resetLocked()
	s.mu.Unlock()

	s.dispatch(req)
}

// SetAcademicYear changes the academic year filter.
func (s *DirectoryState) SetAcademicYear(year string) {
	s.update(func(f *models.FilterSet) { f.AcademicYear = year })
}

// SetBranch changes the branch filter.
func (s *DirectoryState) SetBranch(branch string) {
	s.update(func(f *models.FilterSet) { f.Branch = branch })
}

// SetGroup changes the group filter. An empty group means all groups.
func (s *DirectoryState) SetGroup(group string) {
	s.update(func(f *models.FilterSet) { f.Group = group })
}

// CommitSearch applies settled search text, usually from a SearchDebouncer.
func (s *DirectoryState) CommitSearch(text string) {
	s.update(func(f *models.FilterSet) { f.Search = text })
}

// Focus is called when the directory screen regains focus. Search, group
// and page go back to their defaults; academic year and branch persist.
func (s *DirectoryState) Focus() {
	s.mu.Lock()
	if s.closed || !s.mounted {
		s.mu.Unlock()
		return
	}
	s.filters.Search = ""
	s.filters.Group = ""
	req := s.resetLocked()
	s.mu.Unlock()

	s.dispatch(req)
}

// Refresh discards the accumulated list and refetches page 1 of the current
// epoch.
func (s *DirectoryState) Refresh() {
	s.mu.Lock()
	if s.closed || !s.mounted {
		s.mu.Unlock()
		return
	}
	req := s.resetLocked()
	s.mu.Unlock()

	s.dispatch(req)
}

// LoadMore requests the next page. It reports whether a fetch was started;
// it is a no-op while a fetch is in flight or once the list is exhausted.
func (s *DirectoryState) LoadMore() bool {
	s.mu.Lock()
	if s.closed || !s.mounted || s.loading || !s.hasMore || !s.filters.HasScope() {
		s.mu.Unlock()
		return false
	}
	req := s.startLocked(s.filters.Page + 1)
	s.mu.Unlock()

	s.dispatch(req)
	return true
}

// update applies mutate and starts a new epoch when any non-page filter
// actually changed.
func (s *DirectoryState) update(mutate func(*models.FilterSet)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next := s.filters
	mutate(&next)
	if next.SameEpoch(s.filters) {
		s.mu.Unlock()
		return
	}
	s.filters = next
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	req := s.resetLocked()
	s.mu.Unlock()

	s.dispatch(req)
}

// resetLocked starts a new epoch: the list is cleared, page goes back to 0
// and any in-flight result is orphaned. Returns the page 1 request when the
// scope is complete. Caller holds s.mu.
func (s *DirectoryState) resetLocked() *fetchRequest {
	s.generation++
	s.users = make([]models.User, 0)
	s.count = nil
	s.filters.Page = 0
	s.hasMore = true
	s.loading = false
	s.lastError = nil

	if !s.filters.HasScope() {
		s.log.Debug().Msg("Waiting for academic year and branch before first fetch")
		return nil
	}
	return s.startLocked(1)
}

// startLocked marks the controller loading, counts the fetch in s.wg while
// s.mu is still held, and builds the request. Caller holds s.mu and must
// dispatch the result.
func (s *DirectoryState) startLocked(page int) *fetchRequest {
	s.loading = true
	s.wg.Add(1)
	f := s.filters
	f.Page = page
	return &fetchRequest{generation: s.generation, filters: f}
}

func (s *DirectoryState) dispatch(req *fetchRequest) {
	if req == nil {
		return
	}
	if s.eventBus != nil {
		s.eventBus.Publish(NewDirectoryLoadingEvent(req.filters, true))
	}

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		s.log.Debug().Int("page", req.filters.Page).Str("search", req.filters.Search).Msg("Fetching directory page")
		page, err := s.fetcher.FetchPage(ctx, s.token, req.filters)
		s.complete(req, page, err)
	}()
}

// complete merges a fetch result if it still belongs to the current epoch.
func (s *DirectoryState) complete(req *fetchRequest, page *models.PageResult, err error) {
	s.mu.Lock()
	if s.closed || req.generation != s.generation {
		s.mu.Unlock()
		s.log.Debug().Int("page", req.filters.Page).Msg("Discarding stale directory response")
		return
	}
	s.loading = false

	if err != nil {
		s.lastError = err
		park := s.deferrer != nil && api.IsNetworkError(err)
		s.mu.Unlock()

		s.log.Error().Err(err).Int("page", req.filters.Page).Msg("Failed to load directory page")
		if s.eventBus != nil {
			s.eventBus.Publish(NewDirectoryLoadingEvent(req.filters, false))
			s.eventBus.Publish(NewDirectoryErrorEvent(req.filters, err))
			s.eventBus.PublishError("directory", "fetch_page", err, park)
		}
		if park {
			s.deferrer.Defer("load directory page", func() { s.retry(req) })
		}
		return
	}

	if req.filters.Page == 1 {
		s.users = append(make([]models.User, 0, len(page.Results)), page.Results...)
	} else {
		s.users = append(s.users, page.Results...)
	}
	s.filters.Page = req.filters.Page
	s.hasMore = page.HasMore()
	s.count = page.Count
	s.lastError = nil

	filters := s.filters
	hasMore := s.hasMore
	count := s.count
	usersCopy := make([]models.User, len(s.users))
	copy(usersCopy, s.users)
	s.mu.Unlock()

	s.log.Debug().Int("page", filters.Page).Int("total", len(usersCopy)).Bool("has_more", hasMore).Msg("Directory page merged")
	if s.eventBus != nil {
		s.eventBus.Publish(NewDirectoryLoadingEvent(filters, false))
		s.eventBus.Publish(NewDirectoryChangedEvent(filters, usersCopy, hasMore, count))
		if !hasMore {
			s.eventBus.Publish(NewDirectoryExhaustedEvent(filters, len(usersCopy)))
		}
	}
}

// retry replays a parked request once connectivity returns, provided the
// epoch has not moved on and the same page is still the next one.
func (s *DirectoryState) retry(req *fetchRequest) {
	s.mu.Lock()
	if s.closed || req.generation != s.generation || s.loading || s.filters.Page+1 != req.filters.Page {
		s.mu.Unlock()
		return
	}
	next := s.startLocked(req.filters.Page)
	s.mu.Unlock()

	s.log.Info().Int("page", next.filters.Page).Msg("Retrying directory page after reconnect")
	s.dispatch(next)
}

// Close tears the controller down. Results of in-flight fetches are
// discarded and their requests cancelled.
func (s *DirectoryState) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.loading = false
	s.mu.Unlock()

	s.cancel()
}

// Wait blocks until every dispatched fetch has completed.
func (s *DirectoryState) Wait() {
	s.wg.Wait()
}

// Users returns a copy of the accumulated list.
func (s *DirectoryState) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.User, len(s.users))
	copy(result, s.users)
	return result
}

// Filters returns the current filter set. Page is the last page merged.
func (s *DirectoryState) Filters() models.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// HasMore reports whether the server advertised another page.
func (s *DirectoryState) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// IsLoading reports whether a fetch for the current epoch is in flight.
func (s *DirectoryState) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Count returns the server-side total, or nil when not reported.
func (s *DirectoryState) Count() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// LastError returns the error of the most recent failed fetch in this epoch.
func (s *DirectoryState) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Status derives the pagination state for the current epoch.
func (s *DirectoryState) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.loading:
		return StatusLoading
	case s.filters.Page == 0:
		return StatusIdle
	case !s.hasMore:
		return StatusExhausted
	default:
		return StatusLoaded
	}
}
