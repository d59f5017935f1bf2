package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend keeps results on local disk, served back through the
// /files/<key> route. Used for single-instance and development deployments.
type LocalBackend struct {
	basePath    string
	externalURL string
}

func NewLocalBackend(config *BackendConfig) (*LocalBackend, error) {
	basePath := config.LocalPath
	if basePath == "" {
		basePath = "./files"
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalBackend{
		basePath:    basePath,
		externalURL: strings.TrimSuffix(config.ExternalURL, "/"),
	}, nil
}

func (b *LocalBackend) fullPath(key string) (string, error) {
	// Keys are server-generated, but reject traversal anyway since the
	// /files route feeds user input into Get.
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(b.basePath, clean), nil
}

func (b *LocalBackend) Store(ctx context.Context, key string, reader io.Reader, contentType string) error {
	fullPath, err := b.fullPath(key)
	if err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(fullPath)
		return err
	}

	return nil
}

func (b *LocalBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := b.fullPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, err
	}

	return file, nil
}

func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	fullPath, err := b.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := b.fullPath(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (b *LocalBackend) GetURL(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("%s/files/%s", b.externalURL, key), nil
}
