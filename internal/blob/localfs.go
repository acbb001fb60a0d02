package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
)

var (
	_ Store    = (*LocalFS)(nil)
	_ Transfer = (*LocalFS)(nil)
)

type tokenKind int

const (
	tokenUpload tokenKind = iota
	tokenDownload
)

type tokenEntry struct {
	locator   string
	kind      tokenKind
	expiresAt time.Time
}

// LocalFS stores objects on the local filesystem and issues expiring random
// tokens as transfer handles. Handles are served by the API's upload/download
// endpoints.
type LocalFS struct {
	root      string
	baseURL   string
	handleTTL time.Duration
	now       func() time.Time

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

// NewLocalFS creates a filesystem-backed blob store. baseURL is the public
// prefix transfer handles are built from, e.g. "http://localhost:8080".
func NewLocalFS(root, baseURL string, handleTTL time.Duration) *LocalFS {
	return &LocalFS{
		root:      root,
		baseURL:   strings.TrimRight(baseURL, "/"),
		handleTTL: handleTTL,
		now:       time.Now,
		tokens:    make(map[string]tokenEntry),
	}
}

func (l *LocalFS) RequestUploadLocation(ctx context.Context, meta domain.FileMeta) (*UploadSlot, error) {
	name := sanitizeFileName(meta.FileName)
	if name == "" {
		return nil, domain.ErrEmptyFileName
	}

	locator := filepath.ToSlash(filepath.Join("uploads", uuid.NewString(), name))
	token := uuid.NewString()
	expiresAt := l.now().Add(l.handleTTL)

	l.mu.Lock()
	l.purgeExpiredLocked()
	l.tokens[token] = tokenEntry{locator: locator, kind: tokenUpload, expiresAt: expiresAt}
	l.mu.Unlock()

	return &UploadSlot{
		Locator:   locator,
		Handle:    l.baseURL + "/api/v1/uploads/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

func (l *LocalFS) RequestDownloadLocation(ctx context.Context, locator string) (string, error) {
	if !l.exists(locator) {
		return "", ErrObjectNotFound
	}

	token := uuid.NewString()
	l.mu.Lock()
	l.purgeExpiredLocked()
	l.tokens[token] = tokenEntry{locator: locator, kind: tokenDownload, expiresAt: l.now().Add(l.handleTTL)}
	l.mu.Unlock()

	return l.baseURL + "/api/v1/downloads/" + token, nil
}

func (l *LocalFS) ResolveUpload(token string) (string, error) {
	return l.resolve(token, tokenUpload)
}

func (l *LocalFS) ResolveDownload(token string) (string, error) {
	return l.resolve(token, tokenDownload)
}

func (l *LocalFS) resolve(token string, kind tokenKind) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.tokens[token]
	if !ok || entry.kind != kind || l.now().After(entry.expiresAt) {
		delete(l.tokens, token)
		return "", ErrHandleExpired
	}
	return entry.locator, nil
}

func (l *LocalFS) Put(locator string, r io.Reader) error {
	abs, err := l.abs(locator)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("blob: mkdir: %w", err)
	}
	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("blob: create: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("blob: write: %w", err)
	}
	return nil
}

func (l *LocalFS) Open(locator string) (io.ReadCloser, error) {
	abs, err := l.abs(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("blob: open: %w", err)
	}
	return f, nil
}

func (l *LocalFS) exists(locator string) bool {
	abs, err := l.abs(locator)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// abs resolves a locator under the root, rejecting path escapes.
func (l *LocalFS) abs(locator string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob: invalid locator %q", locator)
	}
	return filepath.Join(l.root, clean), nil
}

// purgeExpiredLocked drops stale tokens. Called with l.mu held.
func (l *LocalFS) purgeExpiredLocked() {
	now := l.now()
	for token, entry := range l.tokens {
		if now.After(entry.expiresAt) {
			delete(l.tokens, token)
		}
	}
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
