// Package permissions derives a flat codename set from the permission
// payload and gates screens and commands on it.
package permissions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptySource is returned when the permission payload is missing.
var ErrEmptySource = errors.New("permission payload is empty")

// Form tags which representation a Source holds.
type Form int

const (
	// FormList is a sequence of permission records.
	FormList Form = iota + 1
	// FormGrouped maps a group name to the codenames it grants.
	FormGrouped
)

func (f Form) String() string {
	switch f {
	case FormList:
		return "list"
	case FormGrouped:
		return "grouped"
	default:
		return "unknown"
	}
}

// Record is one permission in list form.
type Record struct {
	Codename string `json:"codename"`
	Name     string `json:"name,omitempty"`
}

// GroupRecord is the value of a group in grouped form.
type GroupRecord struct {
	Codenames []string `json:"codenames"`
}

// Source is the permission payload in one of its two observed shapes.
// Only Resolve looks at the shape; everything downstream uses a Set.
type Source struct {
	form    Form
	list    []Record
	grouped map[string]GroupRecord
}

// ListForm wraps a sequence of permission records.
func ListForm(records []Record) *Source {
	return &Source{form: FormList, list: records}
}

// GroupedForm wraps a group name → codenames mapping.
func GroupedForm(groups map[string]GroupRecord) *Source {
	return &Source{form: FormGrouped, grouped: groups}
}

// Form reports which representation s holds.
func (s *Source) Form() Form {
	return s.form
}

// Resolve flattens s into a codename set. Blank codenames are dropped.
func (s *Source) Resolve() Set {
	set := make(Set)
	switch s.form {
	case FormList:
		for _, r := range s.list {
			set.add(r.Codename)
		}
	case FormGrouped:
		for _, g := range s.grouped {
			for _, c := range g.Codenames {
				set.add(c)
			}
		}
	}
	return set
}

// ParseSource decodes a permission payload.
//
// Accepted shapes:
//   - [{"codename": "view_user"}, ...] or ["view_user", ...]
//   - {"permissions": [...]} or {"results": [...]} wrapping the list form
//   - {"Teachers": {"codenames": ["view_user"]}, ...}
func ParseSource(data []byte) (*Source, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptySource
	}

	switch trimmed[0] {
	case '[':
		records, err := parseRecords(trimmed)
		if err != nil {
			return nil, err
		}
		return ListForm(records), nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode permission payload: %w", err)
		}
		for _, key := range []string{"permissions", "results"} {
			if raw, ok := fields[key]; ok && isArray(raw) {
				records, err := parseRecords(raw)
				if err != nil {
					return nil, err
				}
				return ListForm(records), nil
			}
		}

		groups := make(map[string]GroupRecord, len(fields))
		for name, raw := range fields {
			var g GroupRecord
			if isArray(raw) {
				if err := json.Unmarshal(raw, &g.Codenames); err != nil {
					return nil, fmt.Errorf("group %q: %w", name, err)
				}
			} else if err := json.Unmarshal(raw, &g); err != nil {
				return nil, fmt.Errorf("group %q: %w", name, err)
			}
			groups[name] = g
		}
		return GroupedForm(groups), nil
	}

	return nil, fmt.Errorf("unsupported permission payload starting with %q", trimmed[0])
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

// parseRecords accepts records or bare codename strings.
func parseRecords(data []byte) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode permission list: %w", err)
	}
	records := make([]Record, 0, len(items))
	for i, item := range items {
		var codename string
		if json.Unmarshal(item, &codename) == nil {
			records = append(records, Record{Codename: codename})
			continue
		}
		var r Record
		if err := json.Unmarshal(item, &r); err != nil {
			return nil, fmt.Errorf("permission %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Set is a flat set of permission codenames.
type Set map[string]struct{}

// NewSet builds a set from codenames.
func NewSet(codenames ...string) Set {
	s := make(Set, len(codenames))
	for _, c := range codenames {
		s.add(c)
	}
	return s
}

func (s Set) add(codename string) {
	if c := strings.TrimSpace(codename); c != "" {
		s[c] = struct{}{}
	}
}

// Has reports whether codename is granted.
func (s Set) Has(codename string) bool {
	_, ok := s[codename]
	return ok
}

// Missing returns the required codenames not in s, in the order given.
func (s Set) Missing(required []string) []string {
	var missing []string
	for _, r := range required {
		if !s.Has(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Sorted returns the codenames in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
