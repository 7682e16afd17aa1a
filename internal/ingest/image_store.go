package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageStore keeps camera snapshots and hands back an opaque reference.
type ImageStore interface {
	Save(ctx context.Context, direction, filename string, r io.Reader) (string, error)
}

// DiskImageStore writes snapshots under a root directory, one folder per
// direction and day. References are slash separated paths relative to root.
type DiskImageStore struct {
	root string
	now  func() time.Time
}

func NewDiskImageStore(root string) (*DiskImageStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("image store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image root: %w", err)
	}
	return &DiskImageStore{root: root, now: time.Now}, nil
}

func (s *DiskImageStore) Save(ctx context.Context, direction, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
	default:
		ext = ".jpg"
	}

	day := s.now().UTC().Format("2006/01/02")
	ref := path.Join(direction, day, uuid.NewString()+ext)
	fullPath := filepath.Join(s.root, filepath.FromSlash(ref))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("close image: %w", err)
	}

	return ref, nil
}
