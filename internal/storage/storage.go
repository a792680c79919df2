// Package storage keeps extraction sources and results, either on local disk
// or in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store holds result documents by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, meta map[string]string) (Location, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Location describes where a stored object lives.
type Location struct {
	Backend string `json:"backend"`
	Key     string `json:"key"`
	URL     string `json:"url"`
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s: missing key", raw)
	}
	return u.Host, key, nil
}

// ResultKey builds the object key for a job's document.
func ResultKey(prefix, jobID string) string {
	name := jobID + ".docx"
	if prefix = strings.Trim(prefix, "/"); prefix == "" {
		return name
	}
	return prefix + "/" + name
}
