package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"apotek/internal/apperrors"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used for tests and for running without
// Cloudinary credentials.
type Memory struct {
	blobs map[string][]byte // keyed by public ID
	mu    sync.RWMutex

	// FailUploads makes every Upload fail, for exercising the required-path
	// error handling.
	FailUploads bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[string][]byte),
	}
}

// Upload stores the bytes under a generated ID.
func (m *Memory) Upload(ctx context.Context, file io.Reader, filename string) (*UploadResult, error) {
	if m.FailUploads {
		return nil, &apperrors.UpstreamError{Op: "upload", Err: fmt.Errorf("uploads disabled")}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", filename, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.blobs[id] = data
	return &UploadResult{URL: "memory://" + id, PublicID: id}, nil
}

// Delete removes the blob if present.
func (m *Memory) Delete(ctx context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, publicID)
	return nil
}

// IDFromURL strips the memory:// scheme.
func (m *Memory) IDFromURL(url string) string {
	return strings.TrimPrefix(url, "memory://")
}

// Fetch returns the stored bytes for the URL.
func (m *Memory) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[m.IDFromURL(url)]
	if !ok {
		return nil, &apperrors.UpstreamError{Op: "fetch", Err: fmt.Errorf("blob %s not stored", url)}
	}
	return data, nil
}
