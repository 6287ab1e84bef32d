// Package photo manages photo blobs kept in the cache directory.
//
// Blobs are named by a generated token. Records hold the token and nothing
// else; this package is the only code that turns a token into a path.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-service/internal/model"
)

// Photo manager errors.
var (
	ErrNoFile      = errors.New("no photo file uploaded")
	ErrNotFound    = errors.New("photo file not found")
	ErrDirLocked   = errors.New("cache directory is in use by another process")
	ErrInvalidPath = errors.New("cache directory path is empty")
)

// LockFileName is created inside the cache directory while a Manager owns it.
const LockFileName = ".inventory.lock"

const tempPattern = ".upload-*"

// Prometheus metrics.
var (
	blobsStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_blobs_stored_total",
			Help: "Total number of photo blobs written to the cache directory",
		},
	)

	bytesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_bytes_stored_total",
			Help: "Total number of photo bytes written to the cache directory",
		},
	)

	releaseFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_release_failures_total",
			Help: "Number of photo blobs that could not be removed",
		},
	)
)

// CommitFunc records a freshly stored token on its owner and returns the
// token it displaced, if any.
type CommitFunc func(token model.PhotoToken) (*model.PhotoToken, error)

// Manager stores, serves and removes photo blobs in a single directory.
type Manager struct {
	dir    string
	lock   *flock.Flock
	logger *zap.Logger
}

// Open creates dir if needed and takes an exclusive lock on it.
func Open(dir string, logger *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, ErrInvalidPath
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, ErrDirLocked
	}

	logger.Info("photo cache opened", zap.String("dir", dir))

	return &Manager{
		dir:    dir,
		lock:   lock,
		logger: logger,
	}, nil
}

// Close releases the directory lock. Stored blobs are left in place.
func (m *Manager) Close() error {
	if err := m.lock.Unlock(); err != nil {
		return fmt.Errorf("release cache lock: %w", err)
	}
	return nil
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Store writes r to a new blob and returns its token. The blob only becomes
// visible under its token once fully written, so a failed upload leaves nothing behind.
func (m *Manager) Store(ctx context.Context, r io.Reader) (model.PhotoToken, error) {
	if r == nil {
		return "", ErrNoFile
	}

	tmp, err := os.CreateTemp(m.dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}

	token := model.PhotoToken(uuid.New().String())
	if err := os.Rename(tmpName, m.path(token)); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	committed = true

	blobsStoredTotal.Inc()
	bytesStoredTotal.Add(float64(n))
	m.logger.Debug("photo stored", zap.String("token", token.String()), zap.Int64("bytes", n))

	return token, nil
}

// Open returns the blob behind token. The caller must close it.
func (m *Manager) Open(token model.PhotoToken) (*os.File, error) {
	if !validToken(token) {
		return nil, ErrNotFound
	}

	f, err := os.Open(m.path(token))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}

	return f, nil
}

// Exists reports whether token currently has a backing file.
func (m *Manager) Exists(token model.PhotoToken) bool {
	if !validToken(token) {
		return false
	}
	info, err := os.Stat(m.path(token))
	return err == nil && info.Mode().IsRegular()
}

// Release removes the blob behind token. Failures are logged and counted,
// never returned.
func (m *Manager) Release(_ context.Context, token model.PhotoToken) {
	if !validToken(token) {
		m.logger.Warn("refusing to release malformed photo token", zap.String("token", token.String()))
		releaseFailuresTotal.Inc()
		return
	}

	err := os.Remove(m.path(token))
	switch {
	case err == nil:
		m.logger.Debug("photo released", zap.String("token", token.String()))
	case errors.Is(err, fs.ErrNotExist):
		m.logger.Debug("photo already gone", zap.String("token", token.String()))
	default:
		releaseFailuresTotal.Inc()
		m.logger.Warn("failed to release photo",
			zap.String("token", token.String()),
			zap.Error(err),
		)
	}
}

// Replace stores r as a new blob, hands its token to commit and then releases
// whatever token commit displaced. If commit fails the new blob is released
// and the owner keeps its previous photo.
func (m *Manager) Replace(ctx context.Context, r io.Reader, commit CommitFunc) (model.PhotoToken, error) {
	token, err := m.Store(ctx, r)
	if err != nil {
		return "", err
	}

	previous, err := commit(token)
	if err != nil {
		m.Release(ctx, token)
		return "", err
	}

	if previous != nil && *previous != "" && *previous != token {
		m.Release(ctx, *previous)
	}

	return token, nil
}

func (m *Manager) path(token model.PhotoToken) string {
	return filepath.Join(m.dir, token.String())
}

// validToken accepts only tokens this package could have generated.
func validToken(token model.PhotoToken) bool {
	_, err := uuid.Parse(token.String())
	return err == nil && len(token) == 36
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
