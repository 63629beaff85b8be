package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jmgilman/go/fs/billy"
	"github.com/jmgilman/go/fs/core"

	"github.com/tailored-agentic-units/blobstore/store"
)

func newMemoryStore(t *testing.T) (*store.FileStore, core.FS) {
	t.Helper()
	fsys := billy.NewMemory()
	return store.NewFileStore(fsys), fsys
}

func newLocalStore(t *testing.T) (*store.FileStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := store.New(&store.Config{Path: root})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, root
}

func TestFileStore_WriteAtomic_And_ReadAll(t *testing.T) {
	s, root := newLocalStore(t)
	ctx := context.Background()

	if err := s.WriteAtomic(ctx, "abc", []byte("hello")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "abc"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("file content = %q, want %q", string(got), "hello")
	}

	val, err := s.ReadAll(ctx, "abc")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(val) != "hello" {
		t.Errorf("ReadAll() = %q, want %q", string(val), "hello")
	}
}

func TestFileStore_EmptyPayload(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	if err := s.WriteAtomic(ctx, "empty", nil); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	ok, err := s.Exists(ctx, "empty")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v, want true, nil", ok, err)
	}

	val, err := s.ReadAll(ctx, "empty")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(val) != 0 {
		t.Errorf("ReadAll() returned %d bytes, want 0", len(val))
	}
}

func TestFileStore_LargePayload(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	payload := make([]byte, 3<<20+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	if err := s.WriteAtomic(ctx, "large", payload); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	val, err := s.ReadAll(ctx, "large")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(val) != string(payload) {
		t.Errorf("ReadAll() returned %d bytes differing from the %d written", len(val), len(payload))
	}
}

func TestFileStore_ReadAll_KeyNotFound(t *testing.T) {
	s, _ := newMemoryStore(t)

	_, err := s.ReadAll(context.Background(), "missing")
	if !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("ReadAll() error = %v, want %v", err, store.ErrKeyNotFound)
	}
}

func TestFileStore_Exists(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "abc")
	if err != nil || ok {
		t.Fatalf("Exists() before write = %v, %v, want false, nil", ok, err)
	}

	if err := s.WriteAtomic(ctx, "abc", []byte("hello")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	ok, err = s.Exists(ctx, "abc")
	if err != nil || !ok {
		t.Errorf("Exists() after write = %v, %v, want true, nil", ok, err)
	}
}

func TestFileStore_WriteAtomic_Conflict(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	if err := s.WriteAtomic(ctx, "abc", []byte("v1")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	err := s.WriteAtomic(ctx, "abc", []byte("v2"))
	if !errors.Is(err, store.ErrKeyExists) {
		t.Fatalf("WriteAtomic() error = %v, want %v", err, store.ErrKeyExists)
	}

	val, _ := s.ReadAll(ctx, "abc")
	if string(val) != "v1" {
		t.Errorf("ReadAll() = %q, want original %q", string(val), "v1")
	}
}

func TestFileStore_Exists_IgnoresTempFiles(t *testing.T) {
	s, fsys := newMemoryStore(t)
	ctx := context.Background()

	if err := fsys.WriteFile(".blob-0000.tmp", []byte("partial"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ok, err := s.Exists(ctx, "abc")
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v, want false with only a temp file present", ok, err)
	}
	if _, err := s.ReadAll(ctx, "abc"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("ReadAll() error = %v, want %v", err, store.ErrKeyNotFound)
	}
}

func TestFileStore_WriteAtomic_LeavesNoTempFiles(t *testing.T) {
	s, root := newLocalStore(t)

	if err := s.WriteAtomic(context.Background(), "abc", []byte("hello")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "abc" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("root contains %v, want only [abc]", names)
	}
}

func TestFileStore_WriteAtomic_LongKey(t *testing.T) {
	s, root := newLocalStore(t)
	ctx := context.Background()

	for _, n := range []int{214, 255} {
		key := strings.Repeat("k", n)
		if !store.ValidKey(key) {
			t.Fatalf("ValidKey(%d chars) = false", n)
		}
		if err := s.WriteAtomic(ctx, key, []byte("long")); err != nil {
			t.Fatalf("WriteAtomic(%d chars) error = %v", n, err)
		}
		got, err := s.ReadAll(ctx, key)
		if err != nil {
			t.Fatalf("ReadAll(%d chars) error = %v", n, err)
		}
		if string(got) != "long" {
			t.Errorf("ReadAll(%d chars) = %q, want %q", n, string(got), "long")
		}
		if ok, err := s.Exists(ctx, key); err != nil || !ok {
			t.Errorf("Exists(%d chars) = %v, %v, want true", n, ok, err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left in root", e.Name())
		}
	}
}

// failingRenameFS simulates a crash between the temp write and publish.
type failingRenameFS struct {
	core.FS
}

func (f *failingRenameFS) Rename(oldpath, newpath string) error {
	return fmt.Errorf("rename %s: %w", oldpath, os.ErrPermission)
}

func TestFileStore_WriteAtomic_PublishFailure(t *testing.T) {
	fsys := billy.NewMemory()
	s := store.NewFileStore(&failingRenameFS{FS: fsys})
	ctx := context.Background()

	err := s.WriteAtomic(ctx, "abc", []byte("hello"))
	if !errors.Is(err, store.ErrSaveFailed) {
		t.Fatalf("WriteAtomic() error = %v, want %v", err, store.ErrSaveFailed)
	}

	ok, err := s.Exists(ctx, "abc")
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v, want false after failed publish", ok, err)
	}
	if _, err := s.ReadAll(ctx, "abc"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("ReadAll() error = %v, want %v", err, store.ErrKeyNotFound)
	}

	entries, err := fsys.ReadDir(".")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") || e.Name() == "abc" {
			t.Errorf("filesystem holds %q, want temp file cleaned up", e.Name())
		}
	}
}

func TestFileStore_WriteAtomic_CancelledContext(t *testing.T) {
	s, root := newLocalStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WriteAtomic(ctx, "abc", []byte("hello"))
	if !errors.Is(err, store.ErrSaveFailed) {
		t.Errorf("WriteAtomic() error = %v, want %v", err, store.ErrSaveFailed)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WriteAtomic() error = %v, want %v", err, context.Canceled)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("root holds %d entries after cancelled write, want 0", len(entries))
	}
}

func TestFileStore_ReadAll_CancelledContext(t *testing.T) {
	s, _ := newLocalStore(t)

	if err := s.WriteAtomic(context.Background(), "abc", []byte("hello")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ReadAll(ctx, "abc")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ReadAll() error = %v, want %v", err, context.Canceled)
	}
}

func TestFileStore_Concurrent_WriteSameKey(t *testing.T) {
	s, root := newLocalStore(t)
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		saved     []string
		conflicts int
	)
	wg.Add(n)

	for i := range n {
		go func() {
			defer wg.Done()
			payload := fmt.Sprintf("payload-%d", i)
			err := s.WriteAtomic(context.Background(), "race", []byte(payload))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved = append(saved, payload)
			case errors.Is(err, store.ErrKeyExists):
				conflicts++
			default:
				t.Errorf("WriteAtomic() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(saved) != 1 {
		t.Fatalf("%d writers succeeded, want exactly 1", len(saved))
	}
	if conflicts != n-1 {
		t.Errorf("%d conflicts, want %d", conflicts, n-1)
	}

	got, err := os.ReadFile(filepath.Join(root, "race"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != saved[0] {
		t.Errorf("file content = %q, want winner %q", string(got), saved[0])
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("root holds %d entries, want 1", len(entries))
	}
}

func TestFileStore_Sweep(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, ".blob-0192.tmp", "partial")
	writeTestFile(t, root, ".blob-0193.tmp", "partial")
	writeTestFile(t, root, "abc", "complete")

	s, err := store.New(&store.Config{Path: root})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s survived New", e.Name())
		}
	}

	val, err := s.ReadAll(context.Background(), "abc")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(val) != "complete" {
		t.Errorf("ReadAll() = %q, want %q", string(val), "complete")
	}

	removed, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("Sweep() removed %d, want 0 on a clean root", removed)
	}
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "records")

	s, err := store.New(&store.Config{Path: root})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.WriteAtomic(context.Background(), "abc", []byte("hello")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "abc")); err != nil {
		t.Errorf("Stat() error = %v, want record under created root", err)
	}
}

func TestNew_EmptyPath(t *testing.T) {
	if _, err := store.New(&store.Config{}); err == nil {
		t.Error("New() error = nil, want error for empty path")
	}
}

// writeTestFile creates a file with the given content under root.
func writeTestFile(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
