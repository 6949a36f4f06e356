package models

import (
	"net/url"
	"strconv"
)

// Query parameter names understood by the directory endpoint.
const (
	ParamAcademicYear = "academic_year"
	ParamBranch       = "branch"
	ParamGroup        = "group"
	ParamSearch       = "search"
	ParamPage         = "page"
	ParamPageSize     = "page_size"
)

// FilterSet holds the user-selectable directory filters plus the page cursor.
// Empty strings and zero integers mean "not set" and are left out of requests.
type FilterSet struct {
	AcademicYear string `json:"academic_year,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Group        string `json:"group,omitempty"`
	Search       string `json:"search,omitempty"`
	Page         int    `json:"page,omitempty" validate:"gte=0"`
	PageSize     int    `json:"page_size,omitempty" validate:"gte=0"`
}

// Query returns the filters as URL values, omitting unset keys.
func (f FilterSet) Query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set(ParamAcademicYear, f.AcademicYear)
	set(ParamBranch, f.Branch)
	set(ParamGroup, f.Group)
	set(ParamSearch, f.Search)
	if f.Page > 0 {
		q.Set(ParamPage, strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set(ParamPageSize, strconv.Itoa(f.PageSize))
	}
	return q
}

// Epoch returns the filter set with the page cursor cleared. Two filter
// sets with equal epochs address the same accumulated list.
func (f FilterSet) Epoch() FilterSet {
	f.Page = 0
	return f
}

// SameEpoch reports whether f and other differ only by page.
func (f FilterSet) SameEpoch(other FilterSet) bool {
	return f.Epoch() == other.Epoch()
}

// HasScope reports whether both academic year and branch are selected.
// Directory requests are not issued until they are.
func (f FilterSet) HasScope() bool {
	return f.AcademicYear != "" && f.Branch != ""
}
