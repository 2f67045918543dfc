package client

import (
	"context"
	"errors"
	"io"
)

// ErrNoUploader is returned by Client.Upload when no Uploader was configured.
var ErrNoUploader = errors.New("no uploader configured")

// File is one file handed to an Uploader.
type File struct {
	Name string
	Data io.Reader
}

// Uploader sends files to the app so they can be referenced in call data.
type Uploader interface {
	Upload(ctx context.Context, root string, files []File, token, uploadID string) (*UploadResponse, error)
}

// Upload sends files through the configured Uploader.
func (c *Client) Upload(ctx context.Context, files []File, uploadID string) (*UploadResponse, error) {
	if c.uploader == nil {
		return nil, ErrNoUploader
	}
	return c.uploader.Upload(ctx, c.config.Root, files, c.token, uploadID)
}
