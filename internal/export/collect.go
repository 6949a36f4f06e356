package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/models"
)

// ErrPageLimit is returned with the users gathered so far when the walk
// reaches the pagination safety cap while the server still reports a next
// page.
var ErrPageLimit = errors.New("pagination limit reached")

// pageLimit is the safety cap on a single walk.
var pageLimit = constants.MaxPaginationPages

// PageFetcher fetches one directory page. *api.Client satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, token string, filters models.FilterSet) (*models.PageResult, error)
}

// Collect walks the directory from page 1 of filters, stopping after
// maxPages pages (0 means until the server reports no next page). Stopping
// at the caller's maxPages is silent; stopping at the safety cap with a
// page still pending returns ErrPageLimit alongside the partial result.
// onPage, if set, is called after each page with the running total.
func Collect(ctx context.Context, fetcher PageFetcher, token string, filters models.FilterSet, maxPages int, onPage func(page *models.PageResult, loaded int)) ([]models.User, *int, error) {
	capped := maxPages <= 0 || maxPages >= pageLimit
	if capped {
		maxPages = pageLimit
	}

	var (
		users []models.User
		count *int
	)
	filters.Page = 1
	for ; filters.Page <= maxPages; filters.Page++ {
		page, err := fetcher.FetchPage(ctx, token, filters)
		if err != nil {
			return users, count, fmt.Errorf("failed to fetch page %d: %w", filters.Page, err)
		}
		users = append(users, page.Results...)
		if page.Count != nil {
			count = page.Count
		}
		if onPage != nil {
			onPage(page, len(users))
		}
		if !page.HasMore() {
			return users, count, nil
		}
	}
	if capped {
		return users, count, fmt.Errorf("%w: fetched %d pages and the server reports more", ErrPageLimit, maxPages)
	}
	return users, count, nil
}
