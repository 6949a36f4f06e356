package session

import (
	"context"
	"sync"
	"time"

	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/models"
)

// ReferenceFetcher lists the reference collections. *api.Client satisfies it.
type ReferenceFetcher interface {
	ListAcademicYears(ctx context.Context) ([]models.AcademicYear, error)
	ListBranches(ctx context.Context) ([]models.Branch, error)
}

// ReferenceCache keeps academic years and branches so that changing the
// directory scope does not refetch them.
type ReferenceCache struct {
	years       []models.AcademicYear
	branches    []models.Branch
	lastFetched time.Time
	ttl         time.Duration
	isLoading   bool
	loadError   error
	mu          sync.RWMutex
}

// NewReferenceCache creates a cache whose entries expire after ttl.
// ttl <= 0 means constants.ReferenceCacheTTL.
func NewReferenceCache(ttl time.Duration) *ReferenceCache {
	if ttl <= 0 {
		ttl = constants.ReferenceCacheTTL
	}
	return &ReferenceCache{ttl: ttl}
}

// Fetch loads both collections unless fresh data is already cached.
func (c *ReferenceCache) Fetch(ctx context.Context, client ReferenceFetcher) error {
	c.mu.Lock()
	if c.isLoading {
		c.mu.Unlock()
		return nil // Already loading
	}
	if !c.lastFetched.IsZero() && time.Since(c.lastFetched) < c.ttl {
		c.mu.Unlock()
		return nil
	}
	c.isLoading = true
	c.mu.Unlock()

	years, err := client.ListAcademicYears(ctx)
	var branches []models.Branch
	if err == nil {
		branches, err = client.ListBranches(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.isLoading = false
	if err != nil {
		c.loadError = err
		return err
	}

	c.years = years
	c.branches = branches
	c.lastFetched = time.Now()
	c.loadError = nil
	return nil
}

// AcademicYears returns the cached academic years.
func (c *ReferenceCache) AcademicYears() []models.AcademicYear {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.years
}

// Branches returns the cached branches.
func (c *ReferenceCache) Branches() []models.Branch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.branches
}

// IsLoading returns whether a fetch is in progress
func (c *ReferenceCache) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLoading
}

// GetLastFetched returns when the collections were last successfully fetched
func (c *ReferenceCache) GetLastFetched() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFetched
}

// LoadError returns the error of the last failed fetch.
func (c *ReferenceCache) LoadError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadError
}

// Invalidate forces the next Fetch to go to the API. Used when the token
// or base URL changes.
func (c *ReferenceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFetched = time.Time{}
}
