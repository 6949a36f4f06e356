package export

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Scheme identifies where an export is written.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeAzure Scheme = "azblob"
)

// ErrEmptyDestination is returned for a blank --to value.
var ErrEmptyDestination = errors.New("export destination is empty")

// Destination is a parsed --to value.
type Destination struct {
	Scheme Scheme
	// Container is the S3 bucket or Azure container. Empty for files.
	Container string
	// Key is the object key, blob name or local path.
	Key string
}

func (d Destination) String() string {
	if d.Scheme == SchemeFile {
		return d.Key
	}
	return fmt.Sprintf("%s://%s/%s", d.Scheme, d.Container, d.Key)
}

// ParseDestination parses a local path, s3://bucket/key or
// azblob://container/blob.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, ErrEmptyDestination
	}

	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return Destination{Scheme: SchemeFile, Key: raw}, nil
	}

	switch Scheme(strings.ToLower(scheme)) {
	case SchemeFile:
		u, err := url.Parse(raw)
		if err != nil {
			return Destination{}, fmt.Errorf("invalid file destination %q: %w", raw, err)
		}
		if u.Path == "" {
			return Destination{}, fmt.Errorf("file destination %q has no path", raw)
		}
		return Destination{Scheme: SchemeFile, Key: u.Path}, nil
	case SchemeS3, SchemeAzure:
		container, key, _ := strings.Cut(rest, "/")
		key = strings.TrimPrefix(key, "/")
		if container == "" || key == "" {
			return Destination{}, fmt.Errorf("destination %q must be %s://<container>/<key>", raw, strings.ToLower(scheme))
		}
		return Destination{Scheme: Scheme(strings.ToLower(scheme)), Container: container, Key: key}, nil
	default:
		return Destination{}, fmt.Errorf("unsupported destination scheme %q", scheme)
	}
}
