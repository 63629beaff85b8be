package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jmgilman/go/fs/billy"
	"github.com/jmgilman/go/fs/core"
)

const (
	// Temp names have a fixed length so any valid key can be staged
	// without exceeding the filesystem's name limit.
	tempPrefix = ".blob-"
	tempSuffix = ".tmp"

	// chunkSize bounds how much is read or written between context checks.
	chunkSize = 1 << 20
)

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger used for best-effort cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) { s.logger = logger }
}

// FileStore is a Store backed by a core.FS. Keys map 1:1 to file names at
// the root of the filesystem.
//
// Writes go to a sibling temp file named ".blob-<id>.tmp", which is synced,
// closed, and renamed onto the key. Writers for the same key are serialized
// from the existence check through the rename, and the existence check is
// repeated right before the rename so a published record is never replaced.
type FileStore struct {
	fsys   core.FS
	locks  *keyLocks
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore over fsys.
func NewFileStore(fsys core.FS, opts ...Option) *FileStore {
	s := &FileStore{
		fsys:   fsys,
		locks:  newKeyLocks(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New creates a FileStore on the local filesystem rooted at cfg.Path,
// creating the directory when needed and sweeping temp files left behind by
// an earlier crash.
func New(cfg *Config, opts ...Option) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is empty")
	}

	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}

	local := billy.NewLocal()
	if err := local.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	fsys, err := local.Chroot(root)
	if err != nil {
		return nil, fmt.Errorf("chroot store root: %w", err)
	}

	s := NewFileStore(fsys, opts...)
	if _, err := s.Sweep(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	ok, err := s.fsys.Exists(key)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	return ok, nil
}

func (s *FileStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	f, err := s.fsys.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		buf.Grow(int(info.Size()))
	}

	if _, err := io.Copy(&buf, &contextReader{ctx: ctx, r: f}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, key, err)
	}

	return buf.Bytes(), nil
}

func (s *FileStore) WriteAtomic(ctx context.Context, key string, payload []byte) error {
	unlock := s.locks.lock(key)
	defer unlock()

	if err := s.ensureAbsent(key); err != nil {
		return err
	}

	tmpName := tempName()
	tmp, err := s.fsys.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	if err := writeChunks(ctx, tmp, payload); err != nil {
		tmp.Close()
		s.discard(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, key, err)
	}
	if syncer, ok := tmp.(core.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			tmp.Close()
			s.discard(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
		}
	}
	if err := tmp.Close(); err != nil {
		s.discard(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	if err := ctx.Err(); err != nil {
		s.discard(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, key, err)
	}

	if err := s.ensureAbsent(key); err != nil {
		s.discard(tmpName)
		return err
	}
	if err := s.fsys.Rename(tmpName, key); err != nil {
		s.discard(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	return nil
}

// Sweep removes temp files left at the root by writes that never published,
// returning how many were removed. It must not run concurrently with writes.
func (s *FileStore) Sweep(_ context.Context) (int, error) {
	entries, err := s.fsys.ReadDir(".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("sweep temp files: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isTempName(e.Name()) {
			continue
		}
		if err := s.fsys.Remove(e.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("sweep temp file %s: %w", e.Name(), err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("removed stale temp files", "count", removed)
	}
	return removed, nil
}

func (s *FileStore) ensureAbsent(key string) error {
	exists, err := s.fsys.Exists(key)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	return nil
}

// discard removes a temp file. Failure is logged only: the file never
// carries the key's name, so it cannot be mistaken for a record.
func (s *FileStore) discard(name string) {
	if err := s.fsys.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove temp file", "file", name, "error", err)
	}
}

func tempName() string {
	return tempPrefix + uuid.Must(uuid.NewV7()).String() + tempSuffix
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}

func writeChunks(ctx context.Context, w io.Writer, payload []byte) error {
	for len(payload) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(len(payload), chunkSize)
		if _, err := w.Write(payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// contextReader stops a read loop once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	return c.r.Read(p)
}
