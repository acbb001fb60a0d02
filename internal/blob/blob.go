// Package blob abstracts the object store holding input and output images.
// The engine only ever handles opaque locators and time-limited transfer
// handles; it never inspects content.
package blob

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
)

var (
	// ErrHandleExpired is returned when a transfer handle is unknown or past
	// its expiry.
	ErrHandleExpired = errors.New("blob: transfer handle expired or unknown")

	// ErrObjectNotFound is returned when a locator resolves to nothing.
	ErrObjectNotFound = errors.New("blob: object not found")
)

// UploadSlot is the result of reserving an upload location: the permanent
// locator recorded on the job and the short-lived handle the client uploads
// through.
type UploadSlot struct {
	Locator   string
	Handle    string
	ExpiresAt time.Time
}

// Store issues time-limited transfer handles over an object store.
type Store interface {
	// RequestUploadLocation reserves a fresh locator for an incoming file and
	// returns the upload handle for it.
	RequestUploadLocation(ctx context.Context, meta domain.FileMeta) (*UploadSlot, error)

	// RequestDownloadLocation returns a time-limited download handle for an
	// existing locator.
	RequestDownloadLocation(ctx context.Context, locator string) (string, error)
}

// Transfer is the server-side half of a handle: the upload/download endpoints
// resolve handles and move bytes.
type Transfer interface {
	// ResolveUpload exchanges an upload token for its locator.
	ResolveUpload(token string) (string, error)

	// ResolveDownload exchanges a download token for its locator.
	ResolveDownload(token string) (string, error)

	// Put writes an object under the locator.
	Put(locator string, r io.Reader) error

	// Open opens the object stored under the locator.
	Open(locator string) (io.ReadCloser, error)
}
