package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// cloudinaryURLPattern extracts the public ID from a delivery URL:
// .../upload/v1234567890/<public_id>.<ext>
var cloudinaryURLPattern = regexp.MustCompile(`/v\d+/(.+)\.\w+$`)

// Cloudinary is the production Store backed by the Cloudinary API.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	client *http.Client
}

// NewCloudinary creates a Cloudinary store from a cloudinary:// URL.
// Uploads land in the given folder.
func NewCloudinary(cloudinaryURL, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &Cloudinary{
		cld:    cld,
		folder: folder,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Upload stores the file and returns its secure URL and public ID.
func (c *Cloudinary) Upload(ctx context.Context, file io.Reader, filename string) (*UploadResult, error) {
	resp, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: c.folder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	return &UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

// Delete removes the blob with the given public ID.
func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", publicID, err)
	}
	return nil
}

// IDFromURL resolves a Cloudinary delivery URL back to its public ID.
func (c *Cloudinary) IDFromURL(url string) string {
	matches := cloudinaryURLPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// Fetch downloads the raw blob bytes from the delivery URL.
func (c *Cloudinary) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
