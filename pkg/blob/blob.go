// Package blob stores image payloads under opaque names.
package blob

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

// Store persists and serves blobs by name
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Ping(ctx context.Context) error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateName rejects names that could escape the store root
func ValidateName(name string) error {
	if len(name) > 128 || !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}

// NewName returns a fresh unique name with the given extension, e.g. ".jpg"
func NewName(ext string) string {
	return uuid.NewString() + ext
}

// ContentType guesses the media type from the name suffix
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".gif"):
		return "image/gif"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
