package proxyfs

import (
	"io/fs"
	"os"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

// Exists reports whether name is visible.
func (w *Writer) Exists(name string) (bool, error) {
	name, err := w.check("exists", name)
	if err != nil {
		return false, err
	}
	info, _, err := w.resolve(name)
	return info != nil, err
}

// Stat returns the overlay metadata of name if the overlay has it, the backing
// metadata otherwise.
func (w *Writer) Stat(name string) (fs.FileInfo, error) {
	name, err := w.check("stat", name)
	if err != nil {
		return nil, err
	}
	info, _, err := w.resolve(name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, store.PathErr("stat", name, store.ErrNotFound)
	}
	return info, nil
}

// ReadDir merges the children of name: overlay children first, then the backing
// children that are not tombstoned, each name once.
func (w *Writer) ReadDir(name string) ([]string, error) {
	name, err := w.check("readdir", name)
	if err != nil {
		return nil, err
	}
	info, inOverlay, err := w.resolve(name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, store.PathErr("readdir", name, store.ErrNotFound)
	}
	if !info.IsDir() {
		return nil, store.PathErr("readdir", name, store.ErrDirectoryExpected)
	}

	var names []string
	if inOverlay {
		if names, err = w.overlay.ReadDir(name); err != nil {
			return nil, err
		}
	}

	backingInfo, err := w.backingStat(name)
	if err != nil {
		return nil, err
	}
	if backingInfo != nil && backingInfo.IsDir() {
		children, err := w.backing.ReadDir(name)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			dead, err := w.tombstones.Has(store.Join(name, child))
			if err != nil {
				return nil, err
			}
			if !dead {
				names = append(names, child)
			}
		}
	}

	return ops.Unique(names), nil
}

// OpenFile opens name with os.O_* flags.
//
// Reads of a path the overlay lacks go straight to the backing store. A write that
// keeps existing content (no O_TRUNC) relocates a backing-only file into the overlay
// first, so appends and in-place updates see the prior bytes. Every other write goes
// to the overlay directly.
func (w *Writer) OpenFile(name string, flag int, perm fs.FileMode) (store.File, error) {
	name, err := w.check("open", name)
	if err != nil {
		return nil, err
	}

	info, inOverlay, err := w.resolve(name)
	if err != nil {
		return nil, err
	}
	exists := info != nil

	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, store.PathErr("open", name, store.ErrAlreadyExists)
	case exists && info.IsDir():
		return nil, store.PathErr("open", name, store.ErrFileExpected)
	}

	if !store.IsWrite(flag) {
		if !exists {
			return nil, store.PathErr("open", name, store.ErrNotFound)
		}
		if inOverlay {
			return w.overlay.OpenFile(name, flag, perm)
		}
		return w.backing.OpenFile(name, flag, perm)
	}

	if !exists && flag&os.O_CREATE == 0 {
		return nil, store.PathErr("open", name, store.ErrNotFound)
	}

	if exists && !inOverlay && flag&os.O_TRUNC == 0 {
		if err := w.relocate(name, info); err != nil {
			return nil, err
		}
		return w.overlay.OpenFile(name, flag, perm)
	}

	if exists && !inOverlay {
		// Truncated backing file: the overlay creates a fresh one with the same mode.
		flag |= os.O_CREATE
		if perm == 0 {
			perm = info.Mode().Perm()
		}
	}
	if err := w.materializeParent("open", name); err != nil {
		return nil, err
	}
	return w.overlay.OpenFile(name, flag, perm)
}

// materializeParent makes sure the overlay holds the directory containing name.
func (w *Writer) materializeParent(op, name string) error {
	parentInOverlay, err := w.requireParentDir(op, name)
	if err != nil || parentInOverlay {
		return err
	}
	parent := store.Parent(name)
	w.log.Debug().Str("path", parent).Msg("materializing parent in overlay")
	return ops.MakeDirs(w.overlay, parent, true)
}

// MakeDir creates the directory name in the overlay. If name already is a visible
// directory, MakeDir succeeds only when recreate is set.
func (w *Writer) MakeDir(name string, recreate bool) error {
	name, err := w.check("mkdir", name)
	if err != nil {
		return err
	}

	if !store.IsRoot(name) {
		if _, err := w.requireParentDir("mkdir", name); err != nil {
			return err
		}
	}

	info, _, err := w.resolve(name)
	if err != nil {
		return err
	}
	if info != nil && (!info.IsDir() || !recreate) {
		return store.PathErr("mkdir", name, store.ErrAlreadyExists)
	}
	return ops.MakeDirs(w.overlay, name, true)
}

// Remove removes the file name. A backing file is hidden behind a tombstone.
func (w *Writer) Remove(name string) error {
	name, err := w.check("remove", name)
	if err != nil {
		return err
	}

	info, inOverlay, err := w.resolve(name)
	if err != nil {
		return err
	}
	if info == nil {
		return store.PathErr("remove", name, store.ErrNotFound)
	}
	if info.IsDir() {
		return store.PathErr("remove", name, store.ErrFileExpected)
	}

	if inOverlay {
		if err := w.overlay.Remove(name); err != nil {
			return err
		}
	}
	return w.tombstones.Add(name)
}

// RemoveDir removes the directory name, which must be empty in the merged view.
func (w *Writer) RemoveDir(name string) error {
	name, err := w.check("removedir", name)
	if err != nil {
		return err
	}
	if store.IsRoot(name) {
		return store.PathErr("removedir", name, store.ErrRemoveRoot)
	}

	info, inOverlay, err := w.resolve(name)
	if err != nil {
		return err
	}
	if info == nil {
		return store.PathErr("removedir", name, store.ErrNotFound)
	}
	if !info.IsDir() {
		return store.PathErr("removedir", name, store.ErrDirectoryExpected)
	}

	children, err := w.ReadDir(name)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return store.PathErr("removedir", name, store.ErrDirectoryNotEmpty)
	}

	if inOverlay {
		if err := w.overlay.RemoveDir(name); err != nil {
			return err
		}
	}
	return w.tombstones.Add(name)
}

// SetInfo applies attrs to name, relocating a backing-only entry first.
func (w *Writer) SetInfo(name string, attrs store.Attrs) error {
	name, err := w.check("setinfo", name)
	if err != nil {
		return err
	}

	info, inOverlay, err := w.resolve(name)
	if err != nil {
		return err
	}
	if info == nil {
		return store.PathErr("setinfo", name, store.ErrNotFound)
	}
	if !inOverlay {
		if err := w.relocate(name, info); err != nil {
			return err
		}
	}
	return w.overlay.SetInfo(name, attrs)
}
