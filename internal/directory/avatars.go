package directory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileAvatarStore writes synced avatar images to a local directory and
// serves them from a static URL prefix. Deployments fronting multiple
// instances should point Dir at shared storage.
type FileAvatarStore struct {
	dir     string
	baseURL string
}

func NewFileAvatarStore(dir, baseURL string) (*FileAvatarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("avatar dir %s: %w", dir, err)
	}
	return &FileAvatarStore{dir: dir, baseURL: baseURL}, nil
}

// Upload stores the image keyed by user ID, overwriting any previous
// avatar. The returned URL is stable across re-uploads; clients that need
// to see changes should key on the avatar fingerprint.
func (s *FileAvatarStore) Upload(ctx context.Context, userID string, image []byte) (string, error) {
	name := userID + ".img"
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".tmp")
	if err != nil {
		return "", fmt.Errorf("avatar temp file: %w", err)
	}
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("avatar write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("avatar close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("avatar rename: %w", err)
	}
	return s.baseURL + "/" + name, nil
}
