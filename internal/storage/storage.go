// Package storage holds the blob stores used for listing and profile images.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPath = errors.New("invalid blob path")

// BlobStore writes and removes uploaded files. Delete of a missing blob is not an error.
type BlobStore interface {
	Put(ctx context.Context, dir, ext string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, p string) error
	URL(p string) string
}

// newKey builds "<dir>/<uuid>.<ext>".
func newKey(dir, ext string) string {
	name := uuid.New().String()
	if ext = strings.TrimPrefix(strings.ToLower(ext), "."); ext != "" {
		name += "." + ext
	}
	return path.Join(strings.Trim(dir, "/"), name)
}

// cleanKey rejects absolute paths and parent traversal.
func cleanKey(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
