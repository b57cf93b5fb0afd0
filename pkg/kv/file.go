package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File persists each key as one JSON file under a base directory.
type File struct {
	baseDir string
}

// NewFile ensures the base directory exists and returns a handle.
func NewFile(baseDir string) (*File, error) {
	if baseDir == "" {
		baseDir = "./data"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &File{baseDir: baseDir}, nil
}

func (f *File) Get(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(f.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("read state file: %w", err)
	}
	return string(data), nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	path := f.resolve(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete state file: %w", err)
	}
	return nil
}

func (f *File) resolve(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(f.baseDir, sanitized+".json")
}
