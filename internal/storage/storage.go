// Package storage provides object storage for claim documents and avatars.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Bucket names.
const (
	BucketDocuments = "claim-documents"
	BucketAvatars   = "profile-avatars"
)

// ErrInvalidKey is returned for keys that would escape their bucket.
var ErrInvalidKey = errors.New("storage: invalid object key")

// ObjectStore stores blobs by bucket and key.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) error
	Delete(ctx context.Context, bucket, key string) error
	// URL returns an address clients can fetch the object from.
	URL(ctx context.Context, bucket, key string) (string, error)
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces name to a safe base name.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 120 {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:120-len(ext)] + ext
	}
	return name
}

// DocumentKey builds <userID>/<uuid>-<sanitized filename>.
func DocumentKey(userID uint, filename string) string {
	return fmt.Sprintf("%d/%s-%s", userID, uuid.NewString(), SanitizeFilename(filename))
}

// AvatarKey is the fixed avatar location for a user.
func AvatarKey(userID uint) string {
	return fmt.Sprintf("%d/avatar.webp", userID)
}

// OwnedBy reports whether key lives under the user's prefix.
func OwnedBy(key string, userID uint) bool {
	return strings.HasPrefix(key, fmt.Sprintf("%d/", userID))
}

func validateKey(bucket, key string) error {
	if bucket == "" || key == "" || strings.Contains(bucket, "/") || strings.Contains(bucket, "..") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
