package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxFilesPerUpload = 10
	uploadConcurrency = 4
)

// FileUpload is one file of a multipart request.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func checkFiles(files []FileUpload, allowed func(contentType string) bool) error {
	if len(files) == 0 {
		return utils.NewValidation("At least one file is required")
	}
	if len(files) > maxFilesPerUpload {
		return utils.NewValidation(fmt.Sprintf("At most %d files can be uploaded at once", maxFilesPerUpload))
	}
	for _, f := range files {
		if !allowed(strings.ToLower(f.ContentType)) {
			return utils.NewValidation("Unsupported file type: " + f.Filename)
		}
	}
	return nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

func isDocument(contentType string) bool {
	return isImage(contentType) || contentType == "application/pdf"
}

// uploadAll stores files concurrently under prefix. URLs come back in the order of files.
func uploadAll(ctx context.Context, blobs storage.BlobStorage, prefix string, files []FileUpload) ([]string, error) {
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Filename, err)
			}
			defer rc.Close()

			key := path.Join(prefix, uuid.NewString()+strings.ToLower(filepath.Ext(f.Filename)))
			url, err := blobs.Put(gctx, storage.Blob{
				Key:         key,
				ContentType: f.ContentType,
				Size:        f.Size,
				Body:        rc,
			})
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, utils.NewExternal("Failed to upload files", err)
	}
	return urls, nil
}
