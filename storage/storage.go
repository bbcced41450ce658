// Package storage keeps uploaded detection images and hands back the URL
// recorded on the detection.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"
)

type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// New returns the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, uploadDir string) (ImageStore, error) {
	switch cfg.Backend {
	case "", "local":
		l, err := NewLocal(uploadDir, "/uploads")
		if err != nil {
			return nil, err
		}
		return l, nil
	case "minio", "s3":
		m, err := NewMinio(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown image storage backend %q", cfg.Backend)
}

// Local writes images under Dir; they are served by the API at URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (l *Local) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	name = filepath.Base(name)
	f, err := os.Create(filepath.Join(l.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}
	return l.URLPrefix + "/" + name, nil
}
