package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes artifacts below a local directory, for deployments without a bucket.
type DiskStore struct {
	Root          string
	PublicBaseURL string
}

func NewDiskStore(root, publicBaseURL string) *DiskStore {
	return &DiskStore{Root: root, PublicBaseURL: publicBaseURL}
}

func (d *DiskStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	fullPath, err := d.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, body, 0o644); err != nil {
		return "", err
	}

	if d.PublicBaseURL == "" {
		return fullPath, nil
	}
	return joinURL(d.PublicBaseURL, key), nil
}

func (d *DiskStore) Delete(ctx context.Context, key string) error {
	fullPath, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *DiskStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(d.Root, cleaned), nil
}
