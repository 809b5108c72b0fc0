package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"

	"imgup/internal/api"
	"imgup/internal/models"
)

// Uploader performs one authenticated image upload.
type Uploader interface {
	UploadImage(ctx context.Context, accessToken, filename string, r io.Reader) (api.ImageData, error)
}

// UploadedFunc is called right after each successful upload, in input order.
type UploadedFunc func(index int, upload models.Upload) error

// BatchError reports a sequence that stopped at the first failing file.
type BatchError struct {
	Succeeded   int
	FailedIndex int
	Path        string
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upload %s failed after %d successful upload(s): %v", e.Path, e.Succeeded, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Engine uploads files one after another and keeps the delete handles of
// every success across calls.
type Engine struct {
	client     Uploader
	onUploaded UploadedFunc
	now        func() time.Time
	handles    []string
}

// NewEngine creates an engine. onUploaded may be nil.
func NewEngine(client Uploader, onUploaded UploadedFunc) *Engine {
	return &Engine{
		client:     client,
		onUploaded: onUploaded,
		now:        time.Now,
	}
}

// Upload sends files in order. On the first failure it stops and returns the
// uploads completed so far with a *BatchError; the caller can resume with
// files[err.Succeeded:].
func (e *Engine) Upload(ctx context.Context, files []string, accessToken string) ([]models.Upload, error) {
	uploads := make([]models.Upload, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return uploads, &BatchError{Succeeded: i, FailedIndex: i, Path: path, Err: err}
		}

		upload, err := e.uploadOne(ctx, path, accessToken)
		if err != nil {
			slog.Debug("upload failed", "path", path, "index", i, "error", err)
			return uploads, &BatchError{Succeeded: i, FailedIndex: i, Path: path, Err: err}
		}
		slog.Debug("uploaded", "path", path, "link", upload.Link)

		uploads = append(uploads, upload)
		e.handles = append(e.handles, upload.DeleteHash)

		if e.onUploaded != nil {
			if err := e.onUploaded(i, upload); err != nil {
				return uploads, err
			}
		}
	}
	return uploads, nil
}

// DeleteHandles returns a copy of every delete handle collected so far.
func (e *Engine) DeleteHandles() []string {
	return append([]string(nil), e.handles...)
}

func (e *Engine) uploadOne(ctx context.Context, path, accessToken string) (models.Upload, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.Upload{}, err
	}
	defer file.Close()

	digest, err := blake2b.New256(nil)
	if err != nil {
		return models.Upload{}, err
	}
	counter := &countingHash{h: digest}

	image, err := e.client.UploadImage(ctx, accessToken, path, io.TeeReader(file, counter))
	if err != nil {
		return models.Upload{}, err
	}

	return models.Upload{
		Path:       path,
		Link:       image.Link,
		DeleteHash: image.DeleteHash,
		Digest:     "blake2b-256:" + hex.EncodeToString(digest.Sum(nil)),
		SizeBytes:  counter.n,
		Status:     models.UploadStatusActive,
		UploadedAt: e.now().UTC(),
	}, nil
}

type countingHash struct {
	h hash.Hash
	n int64
}

func (c *countingHash) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return c.h.Write(p)
}
