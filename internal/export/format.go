// Package export writes the accumulated directory to a local file or to
// cloud object storage as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/prowessninja/smsctl/internal/models"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// csvHeader lists the columns written by FormatCSV.
var csvHeader = []string{"id", "name", "email", "phone", "group", "status"}

// ParseFormat accepts "csv" or "json" in any case. An empty string picks
// the format from the destination's extension, falling back to CSV.
func ParseFormat(s, dest string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "":
		if strings.HasSuffix(strings.ToLower(dest), ".json") {
			return FormatJSON, nil
		}
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv or json)", s)
	}
}

// ContentType returns the MIME type uploaded alongside the object.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Encode writes users to w. JSON output re-emits the records as the server
// sent them; CSV output uses the display fields.
func Encode(w io.Writer, users []models.User, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if users == nil {
			users = []models.User{}
		}
		return enc.Encode(users)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, u := range users {
			if err := cw.Write([]string{u.ID.String(), u.DisplayName(), u.Email, u.Phone, u.Group, u.Status}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}
