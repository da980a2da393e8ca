package proxyfs

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

// mustNewMemFS creates a new memfs or panics
func mustNewMemFS() absfs.FileSystem {
	mfs, err := memfs.NewFS()
	if err != nil {
		panic(err)
	}
	return mfs
}

// populate writes files into s. Names ending in a slash become directories.
func populate(t testing.TB, s store.FS, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if strings.HasSuffix(name, "/") {
			if err := ops.MakeDirs(s, name, true); err != nil {
				t.Fatalf("failed to create %s: %v", name, err)
			}
			continue
		}
		if err := ops.MakeDirs(s, store.Parent(name), true); err != nil {
			t.Fatalf("failed to create parent of %s: %v", name, err)
		}
		if err := ops.WriteFile(s, name, []byte(content)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// newBacking returns an in-memory store holding files.
func newBacking(t testing.TB, files map[string]string) store.FS {
	t.Helper()
	s := store.NewMemory()
	populate(t, s, files)
	t.Cleanup(func() { s.Close() })
	return s
}

// newMemFSBacking returns an absfs memfs store holding files.
func newMemFSBacking(t testing.TB, files map[string]string) store.FS {
	t.Helper()
	s := store.FromAbsFS(mustNewMemFS(), "memfs://", nil)
	populate(t, s, files)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestWriter(t testing.TB, backing store.FS, opts ...Option) *Writer {
	t.Helper()
	w, err := New(backing, opts...)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

// readString reads a whole file from any store
func readString(t testing.TB, s store.FS, name string) string {
	t.Helper()
	f, err := s.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("failed to open %s: %v", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func exists(t testing.TB, s store.FS, name string) bool {
	t.Helper()
	ok, err := s.Exists(name)
	if err != nil {
		t.Fatalf("Exists(%s): %v", name, err)
	}
	return ok
}

func tombstoned(t testing.TB, w *Writer, name string) bool {
	t.Helper()
	ok, err := w.Tombstones().Has(name)
	if err != nil {
		t.Fatalf("Tombstones().Has(%s): %v", name, err)
	}
	return ok
}

// makeZip writes a zip archive holding files and returns its path
func makeZip(t testing.TB, files map[string]string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "backing.zip")
	out, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	for n, content := range files {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}
