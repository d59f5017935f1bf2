package storage

import (
	"context"
	"io"
	"time"
)

// Backend stores conversion results and hands out download URLs the client
// can resolve for at least the configured expiry window.
type Backend interface {
	Store(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetURL(ctx context.Context, key string) (string, error)
}

type BackendType string

const (
	BackendTypeLocal BackendType = "local"
	BackendTypeR2    BackendType = "r2"
)

type BackendConfig struct {
	Type        BackendType
	LocalPath   string
	ExternalURL string
	R2Endpoint  string
	R2Bucket    string
	R2AccessKey string
	R2SecretKey string
	URLExpiry   time.Duration
}

func NewBackend(config *BackendConfig) (Backend, error) {
	switch config.Type {
	case BackendTypeR2:
		return NewR2Backend(config)
	default:
		return NewLocalBackend(config)
	}
}
