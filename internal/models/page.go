package models

// PageResult is one page of a Django REST Framework list response.
// Next is the only signal used to decide whether more pages exist.
type PageResult struct {
	Count    *int    `json:"count,omitempty"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []User  `json:"results"`
}

// HasMore reports whether the server advertised a following page.
func (p *PageResult) HasMore() bool {
	return p != nil && p.Next != nil
}
