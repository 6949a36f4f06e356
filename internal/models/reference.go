package models

// AcademicYear is an entry from /api/academic-years/.
type AcademicYear struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current,omitempty"`
}

// Branch is an entry from /api/branches/.
type Branch struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Group is a user group (student, teacher, ...) used by the group filter.
type Group struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Profile is the signed-in user as returned by /api/users/me/.
type Profile struct {
	ID        ID      `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Role      string  `json:"role"`
	Groups    []Group `json:"groups,omitempty"`
	Branch    *Branch `json:"branch,omitempty"`
}

// ReferenceList is the generic paginated envelope for reference data.
type ReferenceList[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}
