package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyhelper/studyhelper-api/pkg/config"
)

// ErrKeyNotFound signals that a key has no stored value.
var ErrKeyNotFound = errors.New("kv: key not found")

// Store is a durable string-keyed store for JSON-encoded state.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return NewMemory(), nil
	case config.StoreBackendFile:
		return NewFile(cfg.Store.Dir)
	case config.StoreBackendRedis:
		return NewRedis(cfg.Redis)
	case config.StoreBackendPostgres:
		return NewPostgres(cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
