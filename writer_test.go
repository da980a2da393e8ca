package proxyfs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/absfs/proxyfs/store"
	"github.com/absfs/proxyfs/tombstone"
)

const (
	fooText    = "Hello, I'm Foo !\n"
	barText    = "Hi Foo ! I' Bar.\n"
	graultText = "Grault text 3\n"
	newText    = "Grault text 4\n"
	menuText   = "spam, spam, eggs and spam\n"
)

func fixture() map[string]string {
	return map[string]string{
		"/foo.txt":          fooText,
		"/grault.txt":       graultText,
		"/menu.txt":         menuText,
		"/egg/baz.txt":      "baz",
		"/egg/qux.txt":      "qux",
		"/egg/empty/":       "",
		"/quux/corge.txt":   "corge",
		"/quux/nested/x.md": "x",
	}
}

// TestAbsentPaths tests that paths missing from both stores do not exist
func TestAbsentPaths(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	for _, name := range []string{"/nope", "/egg/nope.txt", "/nope/deeper/still", "/foo.txt/child"} {
		if exists(t, w, name) {
			t.Errorf("%s should not exist", name)
		}
		if _, err := w.Stat(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Stat(%s): expected ErrNotFound, got %v", name, err)
		}
	}
}

// TestRoundTrip tests that written content reads back and stays out of the backing store
func TestRoundTrip(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	if err := w.WriteFile("/new.txt", []byte("new content")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := readString(t, w, "/new.txt"); got != "new content" {
		t.Errorf("expected 'new content', got '%s'", got)
	}
	if !exists(t, w.Overlay(), "/new.txt") {
		t.Error("file should exist in overlay")
	}
	if exists(t, backing, "/new.txt") {
		t.Error("file should not exist in backing store")
	}
}

// TestRemoveHides tests that removing a backing file hides it without touching the backing store
func TestRemoveHides(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	if err := w.Remove("/egg/baz.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if exists(t, w, "/egg/baz.txt") {
		t.Error("removed file should not be visible")
	}
	if !exists(t, backing, "/egg/baz.txt") {
		t.Error("backing file should be untouched")
	}
	if !tombstoned(t, w, "/egg/baz.txt") {
		t.Error("removed file should be tombstoned")
	}

	names, err := w.ReadDir("/egg")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, n := range names {
		if n == "baz.txt" {
			t.Error("removed file should not be listed")
		}
	}

	if err := w.Remove("/egg/baz.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove: expected ErrNotFound, got %v", err)
	}
}

// TestRemoveOverlayFile tests removing a file the overlay created
func TestRemoveOverlayFile(t *testing.T) {
	w := newTestWriter(t, newBacking(t, nil))

	if err := w.WriteFile("/a.txt", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := w.Remove("/a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if exists(t, w.Overlay(), "/a.txt") {
		t.Error("file should be deleted from overlay")
	}
	if exists(t, w, "/a.txt") {
		t.Error("file should not be visible")
	}

	// Recreating after removal makes it visible again
	if err := w.WriteFile("/a.txt", []byte("again")); err != nil {
		t.Fatal(err)
	}
	if got := readString(t, w, "/a.txt"); got != "again" {
		t.Errorf("expected 'again', got '%s'", got)
	}
}

// TestListingMerge tests that directory listings merge overlay and backing children
func TestListingMerge(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	if err := w.WriteFile("/egg/new.txt", []byte("n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Remove("/egg/qux.txt"); err != nil {
		t.Fatal(err)
	}
	// Relocating an existing child must not list it twice
	if err := w.AppendFile("/egg/baz.txt", []byte("!")); err != nil {
		t.Fatal(err)
	}

	names, err := w.ReadDir("/egg")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	want := []string{"baz.txt", "new.txt", "empty"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}

	if _, err := w.ReadDir("/foo.txt"); !errors.Is(err, ErrDirectoryExpected) {
		t.Errorf("expected ErrDirectoryExpected, got %v", err)
	}
	if _, err := w.ReadDir("/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestAppendRelocates tests that appending to a backing file keeps its prior content
func TestAppendRelocates(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	f, err := w.OpenFile("/foo.txt", os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte(barText)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := readString(t, w, "/foo.txt"); got != fooText+barText {
		t.Errorf("expected %q, got %q", fooText+barText, got)
	}
	if got := readString(t, backing, "/foo.txt"); got != fooText {
		t.Errorf("backing store modified: got %q", got)
	}
	if got := readString(t, w.Overlay(), "/foo.txt"); got != fooText+barText {
		t.Errorf("overlay should hold the relocated file, got %q", got)
	}
	if !tombstoned(t, w, "/foo.txt") {
		t.Error("relocated file should be tombstoned")
	}

	// Appending again must not relocate over the overlay copy
	if err := w.AppendFile("/foo.txt", []byte(barText)); err != nil {
		t.Fatal(err)
	}
	if got := readString(t, w, "/foo.txt"); got != fooText+barText+barText {
		t.Errorf("expected two appends, got %q", got)
	}
}

// TestUpdateInPlaceRelocates tests that a read-write open without truncation sees the prior bytes
func TestUpdateInPlaceRelocates(t *testing.T) {
	backing := newBacking(t, map[string]string{"/dir/hello.txt": "hello"})
	w := newTestWriter(t, backing)

	f, err := w.OpenFile("/dir/hello.txt", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte("je")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if got := readString(t, w, "/dir/hello.txt"); got != "jello" {
		t.Errorf("expected 'jello', got '%s'", got)
	}
	if !exists(t, w.Overlay(), "/dir") {
		t.Error("relocation should create the parent directory in the overlay")
	}
}

// TestTruncatingOverwrite tests that a truncating write replaces backing content without copying it
func TestTruncatingOverwrite(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	f, err := w.OpenFile("/grault.txt", os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte(newText)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if got := readString(t, w, "/grault.txt"); got != newText {
		t.Errorf("expected %q, got %q", newText, got)
	}
	if got := readString(t, backing, "/grault.txt"); got != graultText {
		t.Errorf("backing store modified: got %q", got)
	}
	if tombstoned(t, w, "/grault.txt") {
		t.Error("a truncating write does not relocate")
	}
}

// TestPureReadDoesNotCopy tests that reading a backing file leaves the overlay empty
func TestPureReadDoesNotCopy(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	if got := readString(t, w, "/menu.txt"); got != menuText {
		t.Errorf("expected %q, got %q", menuText, got)
	}
	if exists(t, w.Overlay(), "/menu.txt") {
		t.Error("a read must not copy the file into the overlay")
	}
	if w.Tombstones().Len() != 0 {
		t.Errorf("a read must not add tombstones, got %d", w.Tombstones().Len())
	}
	if names, _ := w.Overlay().ReadDir("/"); len(names) != 0 {
		t.Errorf("overlay should be empty, got %v", names)
	}
}

// TestMetadataOnlyRelocation tests that changing metadata relocates without changing content
func TestMetadataOnlyRelocation(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	before, err := backing.Stat("/menu.txt")
	if err != nil {
		t.Fatal(err)
	}

	mtime := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := w.SetInfo("/menu.txt", store.TimeAttrs(mtime, mtime)); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}

	if got := readString(t, w.Overlay(), "/menu.txt"); got != menuText {
		t.Errorf("overlay copy should hold the original content, got %q", got)
	}
	info, err := w.Stat("/menu.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("expected mtime %v, got %v", mtime, info.ModTime())
	}

	after, _ := backing.Stat("/menu.txt")
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("backing metadata must not change")
	}
	if !tombstoned(t, w, "/menu.txt") {
		t.Error("relocated file should be tombstoned")
	}
}

// TestSetInfoDirectoryRelocation tests that a backing directory relocates empty
func TestSetInfoDirectoryRelocation(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	if err := w.SetInfo("/quux", store.ModeAttrs(0o700)); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}

	names, err := w.Overlay().ReadDir("/quux")
	if err != nil {
		t.Fatalf("overlay ReadDir: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("relocated directory should be empty in the overlay, got %v", names)
	}

	info, err := w.Stat("/quux")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("expected mode 0700, got %v", info.Mode().Perm())
	}

	names, err = w.ReadDir("/quux")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"corge.txt", "nested"}) {
		t.Errorf("children should still come from the backing store, got %v", names)
	}

	if err := w.SetInfo("/missing", store.ModeAttrs(0o700)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestReadOnlyBackingRelocatesWritable tests that read-only backing entries stay
// editable once relocated onto a disk overlay
func TestReadOnlyBackingRelocatesWritable(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "locked"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "foo.txt"), []byte(fooText), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "locked", "a.txt"), []byte("a"), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(root, "locked"), 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(filepath.Join(root, "locked"), 0o755) })

	backing, err := store.NewDir(root)
	if err != nil {
		t.Fatal(err)
	}
	overlay, err := store.NewTemp(t.TempDir(), "proxyfs-")
	if err != nil {
		t.Fatal(err)
	}
	w := newTestWriter(t, store.NewReadOnly(backing), WithOverlay(overlay), WithCloseBacking(true))

	if err := w.AppendFile("/foo.txt", []byte(barText)); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if got := readString(t, w, "/foo.txt"); got != fooText+barText {
		t.Errorf("expected %q, got %q", fooText+barText, got)
	}
	info, err := w.Overlay().Stat("/foo.txt")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("expected relocated mode 0644, got %v", info.Mode().Perm())
	}

	// A second append reopens the overlay copy
	if err := w.AppendFile("/foo.txt", []byte(barText)); err != nil {
		t.Fatalf("second AppendFile: %v", err)
	}

	mtime := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := w.SetInfo("/locked", store.TimeAttrs(mtime, mtime)); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}
	info, err = w.Overlay().Stat("/locked")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("expected relocated directory mode 0755, got %v", info.Mode().Perm())
	}
	if err := w.WriteFile("/locked/b.txt", []byte("b")); err != nil {
		t.Fatalf("WriteFile under relocated directory: %v", err)
	}
	if got := readString(t, w, "/locked/a.txt"); got != "a" {
		t.Errorf("backing child should stay visible, got %q", got)
	}
}

// TestOpenFileErrors tests the error kinds of OpenFile
func TestOpenFileErrors(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	tests := []struct {
		name string
		flag int
		want error
	}{
		{"/foo.txt", os.O_WRONLY | os.O_CREATE | os.O_EXCL, ErrAlreadyExists},
		{"/egg", os.O_RDONLY, ErrFileExpected},
		{"/egg", os.O_WRONLY | os.O_TRUNC, ErrFileExpected},
		{"/missing.txt", os.O_RDONLY, ErrNotFound},
		{"/missing.txt", os.O_WRONLY, ErrNotFound},
		{"/missing/new.txt", os.O_WRONLY | os.O_CREATE, ErrNotFound},
		{"/foo.txt/new.txt", os.O_WRONLY | os.O_CREATE, ErrDirectoryExpected},
	}
	for _, tt := range tests {
		_, err := w.OpenFile(tt.name, tt.flag, 0o644)
		if !errors.Is(err, tt.want) {
			t.Errorf("OpenFile(%s, %#x): expected %v, got %v", tt.name, tt.flag, tt.want, err)
		}
		var pe *fs.PathError
		if err != nil && !errors.As(err, &pe) {
			t.Errorf("OpenFile(%s): expected *fs.PathError, got %T", tt.name, err)
		}
	}
}

// TestExclusiveCreate tests creating a new file exclusively
func TestExclusiveCreate(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	f, err := w.OpenFile("/egg/fresh.txt", os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.Close()

	if !exists(t, w.Overlay(), "/egg/fresh.txt") {
		t.Error("file should be created in the overlay")
	}
	if !exists(t, w.Overlay(), "/egg") {
		t.Error("parent should be materialised in the overlay")
	}
	if _, err := w.OpenFile("/egg/fresh.txt", os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

// TestCreateUnderRemovedDirectory tests that a removed directory cannot receive files
func TestCreateUnderRemovedDirectory(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	if err := w.RemoveDir("/egg/empty"); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
	if _, err := w.OpenFile("/egg/empty/file.txt", os.O_WRONLY|os.O_CREATE, 0o644); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestMakeDir tests directory creation semantics
func TestMakeDir(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	if err := w.MakeDir("/fresh", false); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if !exists(t, w.Overlay(), "/fresh") || exists(t, backing, "/fresh") {
		t.Error("directory should be created in the overlay only")
	}

	tests := []struct {
		name     string
		recreate bool
		want     error
	}{
		{"/fresh", false, ErrAlreadyExists},
		{"/egg", false, ErrAlreadyExists},
		{"/foo.txt", true, ErrAlreadyExists},
		{"/foo.txt", false, ErrAlreadyExists},
		{"/missing/child", false, ErrNotFound},
		{"/foo.txt/child", false, ErrDirectoryExpected},
		{"/", false, ErrAlreadyExists},
	}
	for _, tt := range tests {
		if err := w.MakeDir(tt.name, tt.recreate); !errors.Is(err, tt.want) {
			t.Errorf("MakeDir(%s, %v): expected %v, got %v", tt.name, tt.recreate, tt.want, err)
		}
	}

	for _, name := range []string{"/fresh", "/egg", "/"} {
		if err := w.MakeDir(name, true); err != nil {
			t.Errorf("MakeDir(%s, true): %v", name, err)
		}
	}
}

// TestMakeDirs tests recursive creation through the derived operation
func TestMakeDirs(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	if err := w.MakeDirs("/egg/a/b/c", false); err != nil {
		t.Fatalf("MakeDirs: %v", err)
	}
	if ok, _ := w.IsDir("/egg/a/b/c"); !ok {
		t.Error("nested directory should exist")
	}
	if err := w.MakeDirs("/egg/a/b/c", false); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

// TestRemoveDir tests directory removal semantics
func TestRemoveDir(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	tests := []struct {
		name string
		want error
	}{
		{"/", ErrRemoveRoot},
		{"/missing", ErrNotFound},
		{"/foo.txt", ErrDirectoryExpected},
		{"/egg", ErrDirectoryNotEmpty},
	}
	for _, tt := range tests {
		if err := w.RemoveDir(tt.name); !errors.Is(err, tt.want) {
			t.Errorf("RemoveDir(%s): expected %v, got %v", tt.name, tt.want, err)
		}
	}

	if err := w.RemoveDir("/egg/empty"); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
	if exists(t, w, "/egg/empty") {
		t.Error("removed directory should not be visible")
	}
	if !exists(t, backing, "/egg/empty") {
		t.Error("backing directory should be untouched")
	}

	// A directory becomes removable once its merged view is empty
	for _, name := range []string{"/quux/corge.txt", "/quux/nested/x.md"} {
		if err := w.Remove(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.RemoveDir("/quux/nested"); err != nil {
		t.Fatal(err)
	}
	if err := w.RemoveDir("/quux"); err != nil {
		t.Fatalf("RemoveDir on emptied directory: %v", err)
	}

	// Recreating a removed directory shows it empty
	if err := w.MakeDir("/quux", false); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if empty, _ := w.IsEmpty("/quux"); !empty {
		t.Error("recreated directory should be empty")
	}
}

// TestRemoveOnDirectory tests that Remove refuses directories
func TestRemoveOnDirectory(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	if err := w.Remove("/egg"); !errors.Is(err, ErrFileExpected) {
		t.Errorf("expected ErrFileExpected, got %v", err)
	}
}

// TestRemoveTreeGoesThroughWriter tests that the derived removal tombstones every backing entry
func TestRemoveTreeGoesThroughWriter(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	if err := w.AppendFile("/quux/corge.txt", []byte("!")); err != nil {
		t.Fatal(err)
	}
	if err := w.RemoveTree("/quux"); err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}

	for _, name := range []string{"/quux", "/quux/corge.txt", "/quux/nested", "/quux/nested/x.md"} {
		if exists(t, w, name) {
			t.Errorf("%s should not be visible", name)
		}
		if !tombstoned(t, w, name) {
			t.Errorf("%s should be tombstoned", name)
		}
		if !exists(t, backing, name) {
			t.Errorf("%s should remain in the backing store", name)
		}
	}
	if exists(t, w.Overlay(), "/quux") {
		t.Error("overlay copy should be removed")
	}
}

// TestWalkMergedView tests walking the merged tree
func TestWalkMergedView(t *testing.T) {
	w := newTestWriter(t, newBacking(t, map[string]string{
		"/a/1.txt": "1",
		"/a/2.txt": "2",
	}))
	if err := w.WriteFile("/a/0.txt", []byte("0")); err != nil {
		t.Fatal(err)
	}
	if err := w.Remove("/a/2.txt"); err != nil {
		t.Fatal(err)
	}

	var visited []string
	err := w.Walk("/", func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		visited = append(visited, name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"/", "/a", "/a/0.txt", "/a/1.txt"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("expected %v, got %v", want, visited)
	}

	matches, err := w.Glob("/a/*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(matches, []string{"/a/0.txt", "/a/1.txt"}) {
		t.Errorf("unexpected glob result %v", matches)
	}
}

// TestMoveAcrossStores tests that moving a backing file leaves a tombstone behind
func TestMoveAcrossStores(t *testing.T) {
	backing := newBacking(t, fixture())
	w := newTestWriter(t, backing)

	if err := w.Move("/menu.txt", "/egg/menu.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if exists(t, w, "/menu.txt") {
		t.Error("source should be gone")
	}
	if got := readString(t, w, "/egg/menu.txt"); got != menuText {
		t.Errorf("expected %q, got %q", menuText, got)
	}
	if !exists(t, backing, "/menu.txt") {
		t.Error("backing store should be untouched")
	}
}

type failingReader struct {
	store.File
}

func (f failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func (f failingReader) WriteTo(w io.Writer) (int64, error) {
	return 0, errors.New("disk on fire")
}

// failingStore serves files whose reads always fail.
type failingStore struct {
	store.FS
}

func (s failingStore) OpenFile(name string, flag int, perm fs.FileMode) (store.File, error) {
	f, err := s.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return failingReader{f}, nil
}

// TestFailedRelocationLeavesPathPristine tests that a failed copy leaves nothing behind
func TestFailedRelocationLeavesPathPristine(t *testing.T) {
	w := newTestWriter(t, failingStore{newBacking(t, fixture())})

	if err := w.AppendFile("/foo.txt", []byte(barText)); err == nil {
		t.Fatal("expected the relocation to fail")
	}
	if exists(t, w.Overlay(), "/foo.txt") {
		t.Error("partial copy should be removed from the overlay")
	}
	if tombstoned(t, w, "/foo.txt") {
		t.Error("failed relocation must not tombstone the path")
	}
	if !exists(t, w, "/foo.txt") {
		t.Error("path should still be visible from the backing store")
	}
}

// brokenModeStore rejects mode changes, and directory removal when stuck is set.
type brokenModeStore struct {
	store.FS
	stuck bool
}

func (s brokenModeStore) SetInfo(name string, attrs store.Attrs) error {
	if attrs.Mode != nil {
		return store.PathErr("setinfo", name, errors.New("chmod failed"))
	}
	return s.FS.SetInfo(name, attrs)
}

func (s brokenModeStore) RemoveDir(name string) error {
	if s.stuck {
		return store.PathErr("removedir", name, errors.New("rmdir failed"))
	}
	return s.FS.RemoveDir(name)
}

// TestFailedDirectoryRelocation tests that a directory whose mode cannot be copied
// is removed again, and that a failed removal is logged
func TestFailedDirectoryRelocation(t *testing.T) {
	mtime := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)

	var logs strings.Builder
	w := newTestWriter(t, newBacking(t, fixture()),
		WithOverlay(brokenModeStore{FS: store.NewMemory()}),
		WithLogger(zerolog.New(&logs).Level(zerolog.WarnLevel)),
	)
	if err := w.SetInfo("/quux", store.TimeAttrs(mtime, mtime)); err == nil {
		t.Fatal("expected the relocation to fail")
	}
	if exists(t, w.Overlay(), "/quux") {
		t.Error("partial directory should be removed from the overlay")
	}
	if tombstoned(t, w, "/quux") {
		t.Error("failed relocation must not tombstone the path")
	}
	if logs.Len() != 0 {
		t.Errorf("nothing should be logged, got %s", logs.String())
	}

	w = newTestWriter(t, newBacking(t, fixture()),
		WithOverlay(brokenModeStore{FS: store.NewMemory(), stuck: true}),
		WithLogger(zerolog.New(&logs).Level(zerolog.WarnLevel)),
	)
	if err := w.SetInfo("/quux", store.TimeAttrs(mtime, mtime)); err == nil {
		t.Fatal("expected the relocation to fail")
	}
	if !strings.Contains(logs.String(), "cannot remove partial relocation") {
		t.Errorf("expected a cleanup warning, got %q", logs.String())
	}
}

// TestNilBacking tests that a missing backing store behaves as an empty one
func TestNilBacking(t *testing.T) {
	w := newTestWriter(t, nil)

	names, err := w.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty root, got %v", names)
	}
	if err := w.WriteFile("/x", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if got := readString(t, w, "/x"); got != "x" {
		t.Errorf("expected 'x', got '%s'", got)
	}
}

// TestClose tests closing semantics
func TestClose(t *testing.T) {
	backing := newBacking(t, fixture())
	overlay := store.NewMemory()

	w, err := New(backing, WithOverlay(overlay))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if _, err := w.Exists("/foo.txt"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := w.OpenFile("/foo.txt", os.O_RDONLY, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := w.MakeDir("/d", false); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := overlay.Exists("/"); !errors.Is(err, ErrClosed) {
		t.Error("overlay should be closed with the writer")
	}
	if !exists(t, backing, "/foo.txt") {
		t.Error("backing store should stay open by default")
	}
}

// TestCloseBacking tests the close-backing option
func TestCloseBacking(t *testing.T) {
	backing := newBacking(t, fixture())

	w, err := New(backing, WithCloseBacking(true))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := backing.Exists("/foo.txt"); !errors.Is(err, ErrClosed) {
		t.Errorf("backing store should be closed, got %v", err)
	}
}

// TestReadOnlyOverlayRejected tests that a read-only overlay cannot be used
func TestReadOnlyOverlayRejected(t *testing.T) {
	_, err := New(nil, WithOverlay(store.NewReadOnly(store.NewMemory())))
	if !errors.Is(err, ErrConstructionFailed) {
		t.Errorf("expected ErrConstructionFailed, got %v", err)
	}
}

// TestMeta tests the metadata reported by the writer
func TestMeta(t *testing.T) {
	zipped, err := store.NewZip(makeZip(t, map[string]string{"a.txt": "a"}))
	if err != nil {
		t.Fatal(err)
	}
	defer zipped.Close()

	w := newTestWriter(t, zipped)
	meta := w.Meta()
	if meta.ReadOnly {
		t.Error("writer should never report read-only")
	}
	if meta.InvalidPathChars != "\x00" {
		t.Errorf("expected default invalid chars, got %q", meta.InvalidPathChars)
	}

	if _, err := w.Exists("/bad\x00name"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

// TestZipBacking tests an archive backing store
func TestZipBacking(t *testing.T) {
	zipped, err := store.NewZip(makeZip(t, map[string]string{
		"foo.txt":     fooText,
		"dir/":        "",
		"dir/bar.txt": "bar",
	}))
	if err != nil {
		t.Fatal(err)
	}
	w := newTestWriter(t, zipped, WithCloseBacking(true))

	if err := w.AppendFile("/foo.txt", []byte(barText)); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if got := readString(t, w, "/foo.txt"); got != fooText+barText {
		t.Errorf("expected %q, got %q", fooText+barText, got)
	}
	if got := readString(t, w, "/dir/bar.txt"); got != "bar" {
		t.Errorf("expected 'bar', got '%s'", got)
	}
	if err := w.Remove("/dir/bar.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := w.RemoveDir("/dir"); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
}

// TestMemFSBacking tests an absfs backing store
func TestMemFSBacking(t *testing.T) {
	backing := newMemFSBacking(t, fixture())
	w := newTestWriter(t, backing)

	if err := w.AppendFile("/foo.txt", []byte(barText)); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if got := readString(t, w, "/foo.txt"); got != fooText+barText {
		t.Errorf("expected %q, got %q", fooText+barText, got)
	}
	if got := readString(t, backing, "/foo.txt"); got != fooText {
		t.Errorf("backing store modified: got %q", got)
	}
}

// TestChanges tests the list of tombstoned paths
func TestChanges(t *testing.T) {
	w := newTestWriter(t, newBacking(t, fixture()))

	w.Remove("/menu.txt")
	w.AppendFile("/foo.txt", []byte("!"))

	changes, err := w.Changes()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(changes, []string{"/foo.txt", "/menu.txt"}) {
		t.Errorf("unexpected changes %v", changes)
	}
}

// TestPersistentTombstones tests reopening a directory overlay with its tombstones
func TestPersistentTombstones(t *testing.T) {
	backing := newBacking(t, fixture())
	overlayDir := t.TempDir()
	stateDir := filepath.Join(t.TempDir(), "state")

	open := func() *Writer {
		overlay, err := store.NewDir(overlayDir)
		if err != nil {
			t.Fatal(err)
		}
		set, err := tombstone.OpenBadger(stateDir, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		w, err := New(backing, WithOverlay(overlay), WithTombstones(set))
		if err != nil {
			t.Fatal(err)
		}
		return w
	}

	w := open()
	if err := w.Remove("/menu.txt"); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendFile("/foo.txt", []byte(barText)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w = open()
	defer w.Close()
	if exists(t, w, "/menu.txt") {
		t.Error("removal should survive reopening")
	}
	if got := readString(t, w, "/foo.txt"); got != fooText+barText {
		t.Errorf("expected %q, got %q", fooText+barText, got)
	}
}

// TestString tests the writer description
func TestString(t *testing.T) {
	w := newTestWriter(t, nil)
	if s := w.String(); !strings.HasPrefix(s, "<writer '") || !strings.Contains(s, "mem://") {
		t.Errorf("unexpected description %q", s)
	}
}
