package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"autoscapeAi/internal/imaging"
)

// ErrUploaderDisabled indicates that image persistence is not currently enabled.
var ErrUploaderDisabled = errors.New("media uploader disabled")

// UploadInput wraps an image payload for persistence. Only design imagery
// moves through this package: customer yard photos on intake and finished
// renders on completion.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult captures the canonical object key and its accessible URL.
type UploadResult struct {
	Key string
	URL string
}

// Uploader hides the backing store for design imagery.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
}

// validateImage rejects payloads that are not plausible design imagery
// before any bytes reach the backing store.
func validateImage(input UploadInput) error {
	if input.Body == nil {
		return errors.New("image body is required")
	}
	if input.ContentType != "" && !strings.HasPrefix(input.ContentType, "image/") {
		return fmt.Errorf("unsupported content type %q: only images are stored", input.ContentType)
	}
	if input.Size > imaging.MaxImageBytes {
		return fmt.Errorf("image exceeds %d MB limit", imaging.MaxImageBytes/(1024*1024))
	}
	return nil
}

type disabledUploader struct{}

func (disabledUploader) Upload(_ context.Context, _ UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrUploaderDisabled
}

// Disabled returns an uploader that always signals disabled uploads.
func Disabled() Uploader {
	return disabledUploader{}
}
