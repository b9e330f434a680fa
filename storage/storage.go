// Package storage stores uploaded product images and delivery partner documents.
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

	"go-ecommerce-delivery/config"

	"go.uber.org/zap"
)

// Blob is a file to store under Key.
type Blob struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobStorage saves files and returns the URL they are served from.
type BlobStorage interface {
	Put(ctx context.Context, b Blob) (string, error)
	Delete(ctx context.Context, key string) error
}

// New picks the backend named by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (BlobStorage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(ctx, cfg, WithLogger(logger))
	case "", "local":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if key == "" || key == "." {
		return "", errors.New("storage key is required")
	}
	return key, nil
}

// LocalStorage writes files under a directory served at PublicBaseURL.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates root if needed.
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory files are written to.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) Put(ctx context.Context, b Blob) (string, error) {
	key, err := cleanKey(b.Key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create file on server: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, b.Body); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

var _ BlobStorage = (*LocalStorage)(nil)
