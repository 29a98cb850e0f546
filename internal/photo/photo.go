// Package photo persists delivery-confirmation photos and hands back
// retrievable URLs. The storage backend sits behind the Store interface; the
// shipped implementation writes to local disk and relies on the HTTP server to
// serve the directory under /uploads/.
package photo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Store durably persists an uploaded photo and returns a retrievable URL.
type Store interface {
	Save(ctx context.Context, packageID int64, data []byte) (string, error)
}

// LocalStore writes photos under a directory on local disk. Filenames embed
// the package id, the confirmation instant, and a random suffix so a retried
// confirmation in the same second never overwrites an earlier photo.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed. baseURL is the public
// origin the files are served from, without a trailing slash.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Save writes the photo bytes and returns its public URL.
func (s *LocalStore) Save(_ context.Context, packageID int64, data []byte) (string, error) {
	name := fmt.Sprintf("photo_%d_%d_%s.jpg", packageID, time.Now().Unix(), uuid.NewString()[:12])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return s.baseURL + "/uploads/" + name, nil
}
