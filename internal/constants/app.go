package constants

import (
	"time"
)

// Directory listing
const (
	// DefaultPageSize - page_size sent with every directory request (10)
	DefaultPageSize = 10

	// MaxPageSize - upper bound accepted for page_size
	MaxPageSize = 100

	// DefaultUsersPath - directory endpoint relative to the API base URL
	DefaultUsersPath = "/api/users/"

	// SearchDebounceWindow - quiescence window before a search commit (400ms)
	SearchDebounceWindow = 400 * time.Millisecond

	// MaxSearchLength - longest search string sent to the server, in runes
	MaxSearchLength = 100

	// EndReachedThreshold - rows from the bottom that count as "near the end"
	EndReachedThreshold = 2

	// GridColumns - user cards per row
	GridColumns = 2
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 3

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Connectivity
const (
	// ProbeInterval - interval between reachability probes while online (15 seconds)
	ProbeInterval = 15 * time.Second

	// ProbeTimeout - timeout for a single reachability probe (5 seconds)
	ProbeTimeout = 5 * time.Second

	// OfflineProbeMaxDelay - cap on backoff between probes while offline (1 minute)
	OfflineProbeMaxDelay = 1 * time.Minute
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for API operations (30 seconds)
	APIContextTimeout = 30 * time.Second

	// APIConnectionTestTimeout - timeout for testing API connectivity (10 seconds)
	APIConnectionTestTimeout = 10 * time.Second

	// ReferenceCacheTTL - how long academic years and branches stay cached (5 minutes)
	ReferenceCacheTTL = 5 * time.Minute
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// ProxyWarmupTimeout - deadline for the request sent through a new proxy
	ProxyWarmupTimeout = 15 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)

// Rate Limiter
const (
	// APIRequestsPerSecond - sustained request rate against the school API
	APIRequestsPerSecond = 5.0

	// APIBurstCapacity - requests allowed back-to-back before throttling
	APIBurstCapacity = 10

	// RateLimitWarningThreshold - delay threshold to show warning (2 seconds)
	RateLimitWarningThreshold = 2 * time.Second
)

// Pagination Safety Limits
const (
	// MaxPaginationPages - maximum pages to fetch before stopping (prevents infinite loops)
	// At 100 items/page, this allows up to 100,000 items which should cover any reasonable school
	MaxPaginationPages = 1000

	// PaginationWarningThreshold - log warning when approaching limit (90% of max)
	PaginationWarningThreshold = 900
)
