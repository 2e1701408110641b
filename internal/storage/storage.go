// Package storage uploads task attachments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Uploader stores a blob under a slash-separated key and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
}

// ErrInvalidKey is returned for keys escaping the upload root.
var ErrInvalidKey = errors.New("storage: invalid key")

// AttachmentKey is the storage key of a task attachment.
func AttachmentKey(taskID, filename string) string {
	return path.Join("task-attachments", taskID, path.Base(filepath.ToSlash(filename)))
}

// Local writes uploads below a directory on disk.
type Local struct {
	root    string
	baseURL string
	maxSize int64
}

// NewLocal builds a disk uploader. maxBytes <= 0 disables the size check.
func NewLocal(root, baseURL string, maxBytes int64) *Local {
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/"), maxSize: maxBytes}
}

// Upload writes r to root/key.
func (l *Local) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(l.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("storage: create: %w", err)
	}
	defer f.Close() //nolint:errcheck

	src := r
	if l.maxSize > 0 {
		src = io.LimitReader(r, l.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return "", fmt.Errorf("storage: write: %w", err)
	}
	if l.maxSize > 0 && n > l.maxSize {
		_ = os.Remove(dest)
		return "", fmt.Errorf("storage: upload exceeds %d bytes", l.maxSize)
	}
	return l.baseURL + "/" + clean, nil
}

// Root is the directory uploads are written to.
func (l *Local) Root() string {
	return l.root
}
