// Package blobstore wraps the external image store behind a small
// interface: upload, best-effort delete, and raw fetch for downloads.
package blobstore

import (
	"context"
	"io"
)

// UploadResult carries the stored blob's public URL and store-side ID.
type UploadResult struct {
	URL      string
	PublicID string
}

// Store is the blob store collaborator. Upload failures are fatal only for
// paths that require the blob (photo-request submission); callers on
// best-effort paths log and continue.
type Store interface {
	Upload(ctx context.Context, file io.Reader, filename string) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
	// IDFromURL resolves a stored URL back to its public ID, or returns ""
	// when the URL is not one of ours.
	IDFromURL(url string) string
	// Fetch retrieves the raw bytes of a stored blob.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
