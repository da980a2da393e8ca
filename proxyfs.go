package proxyfs

import (
	"fmt"
	"io/fs"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
	"github.com/absfs/proxyfs/tombstone"
)

// Writer is a copy-on-write overlay over a read-only backing store.
//
// Writes land in the overlay store. A backing file modified in place is relocated
// into the overlay first, and deletions are recorded as tombstones, so the backing
// store is never written. A path is visible when the overlay has it, or when the
// backing store has it and it is not tombstoned.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	ops.Ops

	backing    store.FS
	overlay    store.FS
	tombstones tombstone.Set
	meta       store.Meta

	closeBacking   bool
	copyBufferSize int
	cache          *Cache
	log            zerolog.Logger
	closed         bool
}

var _ store.FS = (*Writer)(nil)

// New returns a Writer over backing. A nil backing behaves as an empty store.
func New(backing store.FS, opts ...Option) (*Writer, error) {
	return newWriter(backing, newOptions(opts))
}

func newWriter(backing store.FS, o *options) (*Writer, error) {
	w := &Writer{
		backing:        backing,
		overlay:        o.overlay,
		tombstones:     o.tombstones,
		closeBacking:   o.closeBacking,
		copyBufferSize: o.copyBufferSize,
		cache:          o.cache,
		log:            o.logger,
	}
	if w.backing == nil {
		w.backing = store.NewMemory()
		w.closeBacking = true
	}
	if w.overlay == nil {
		w.overlay = store.NewMemory()
	}
	if w.tombstones == nil {
		w.tombstones = tombstone.NewMemory()
	}
	if w.overlay.Meta().ReadOnly {
		return nil, store.ConstructionFailed("overlay", store.ErrReadOnly)
	}

	w.meta = w.backing.Meta()
	w.meta.ReadOnly = false
	if w.meta.InvalidPathChars == "" {
		w.meta.InvalidPathChars = "\x00"
	}

	w.Ops = ops.BindBuffer(w, w.copyBufferSize)
	return w, nil
}

func (w *Writer) String() string {
	return fmt.Sprintf("<writer '%v'|'%v'>", w.backing, w.overlay)
}

// Backing returns the read-only backing store.
func (w *Writer) Backing() store.FS {
	return w.backing
}

// Overlay returns the store currently receiving writes.
func (w *Writer) Overlay() store.FS {
	return w.overlay
}

// Tombstones returns the tombstone set.
func (w *Writer) Tombstones() tombstone.Set {
	return w.tombstones
}

// Changes returns every tombstoned path, sorted.
func (w *Writer) Changes() ([]string, error) {
	var paths []string
	err := w.tombstones.Range(func(name string) bool {
		paths = append(paths, name)
		return true
	})
	return paths, err
}

// setOverlay installs a new overlay. The previous one is not closed.
func (w *Writer) setOverlay(overlay store.FS) {
	w.overlay = overlay
}

// check rejects calls on a closed Writer and normalises name.
func (w *Writer) check(op, name string) (string, error) {
	if w.closed {
		return name, store.PathErr(op, name, store.ErrClosed)
	}
	return store.Validate(op, name, w.meta.InvalidPathChars)
}

// backingStat returns the backing info of name, or nil when the backing store lacks
// it. Tombstones are not consulted.
func (w *Writer) backingStat(name string) (fs.FileInfo, error) {
	if info, ok := w.cache.getStat(name); ok {
		return info, nil
	}
	if w.cache.isNegative(name) {
		return nil, nil
	}

	info, err := ops.Info(w.backing, name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		w.cache.putNegative(name)
	} else {
		w.cache.putStat(name, info)
	}
	return info, nil
}

// visibleBacking returns the backing info of name unless it is absent or tombstoned.
func (w *Writer) visibleBacking(name string) (fs.FileInfo, error) {
	dead, err := w.tombstones.Has(name)
	if err != nil || dead {
		return nil, err
	}
	return w.backingStat(name)
}

// resolve returns the visible info of name and whether the overlay provides it.
// A nil info means name does not exist.
func (w *Writer) resolve(name string) (fs.FileInfo, bool, error) {
	info, err := ops.Info(w.overlay, name)
	if err != nil {
		return nil, false, err
	}
	if info != nil {
		return info, true, nil
	}
	info, err = w.visibleBacking(name)
	return info, false, err
}

// requireParentDir checks that the parent of name is a visible directory.
func (w *Writer) requireParentDir(op, name string) (inOverlay bool, err error) {
	parent := store.Parent(name)
	info, inOverlay, err := w.resolve(parent)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, store.PathErr(op, name, store.ErrNotFound)
	}
	if !info.IsDir() {
		return false, store.PathErr(op, name, store.ErrDirectoryExpected)
	}
	return inOverlay, nil
}

// Meta returns the backing metadata, made writable.
func (w *Writer) Meta() store.Meta {
	return w.meta
}

// Close closes the overlay and the tombstone set, and the backing store if the
// Writer was asked to or created it. Later calls return ErrClosed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.cache.clear()

	var errs error
	errs = errors.Append(errs, w.overlay.Close())
	errs = errors.Append(errs, w.tombstones.Close())
	if w.closeBacking {
		errs = errors.Append(errs, w.backing.Close())
	}
	return errs
}

// Closed reports whether Close has been called.
func (w *Writer) Closed() bool {
	return w.closed
}

// ClearCache drops every cached backing lookup.
func (w *Writer) ClearCache() {
	w.cache.clear()
}

// CacheStats returns backing cache statistics.
func (w *Writer) CacheStats() CacheStats {
	return w.cache.Stats()
}
