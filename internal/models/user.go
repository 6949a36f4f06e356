package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/prowessninja/smsctl/internal/util/sanitize"
)

// ID is a record identifier. The API serialises primary keys as numbers on
// most endpoints and as strings on a few, so both are accepted.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric IDs as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// User is a directory record. Only the display fields are decoded; the
// original object is kept in Raw and re-emitted untouched by MarshalJSON.
type User struct {
	ID        ID
	FirstName string
	LastName  string
	FullName  string
	Email     string
	Phone     string
	Status    string
	Group     string

	Raw json.RawMessage
}

// UnmarshalJSON decodes a user object leniently. Field names differ between
// the student, staff and admin serializers, so several aliases are tried.
// A record without "id" decodes with an empty ID.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var id ID
	if raw, ok := fields["id"]; ok {
		if err := id.UnmarshalJSON(raw); err != nil {
			return err
		}
	}

	*u = User{
		ID:        id,
		FirstName: textField(fields, "first_name"),
		LastName:  textField(fields, "last_name"),
		FullName:  textField(fields, "full_name", "name", "username"),
		Email:     textField(fields, "email"),
		Phone:     textField(fields, "phone", "phone_number", "mobile", "contact"),
		Status:    statusField(fields),
		Group:     textField(fields, "group", "groups", "role", "user_type"),
		Raw:       append(json.RawMessage(nil), data...),
	}
	return nil
}

// MarshalJSON returns the record exactly as the server sent it.
func (u User) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	return json.Marshal(map[string]any{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"full_name":  u.FullName,
		"email":      u.Email,
		"phone":      u.Phone,
		"status":     u.Status,
		"group":      u.Group,
	})
}

// DisplayName returns the best available human-readable name.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.ID == "" {
		return "Unknown user"
	}
	return "User " + u.ID.String()
}

// Contact returns email and phone joined for single-line display.
func (u User) Contact() string {
	switch {
	case u.Email != "" && u.Phone != "":
		return u.Email + " · " + u.Phone
	case u.Email != "":
		return u.Email
	default:
		return u.Phone
	}
}

func statusField(fields map[string]json.RawMessage) string {
	if raw, ok := fields["is_active"]; ok {
		var active bool
		if json.Unmarshal(raw, &active) == nil {
			if active {
				return "Active"
			}
			return "Inactive"
		}
	}
	return textField(fields, "status")
}

// textField returns the first alias that decodes to something printable.
// Strings and numbers are used as-is, objects contribute their "name", and
// arrays are joined.
func textField(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if s := rawText(raw); s != "" {
			return s
		}
	}
	return ""
}

func rawText(raw json.RawMessage) string {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	return valueText(v)
}

func valueText(v any) string {
	switch t := v.(type) {
	case string:
		return sanitize.Field(t)
	case json.Number:
		return t.String()
	case map[string]any:
		for _, k := range []string{"name", "title", "codename"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := valueText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
