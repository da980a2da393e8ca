package proxyfs

import (
	"io/fs"

	"emperror.dev/errors"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

// ownerDirPerm is kept on relocated directories.
const ownerDirPerm fs.FileMode = 0o700

// relocate copies the backing entry name into the overlay and tombstones it.
//
// A failed copy removes whatever reached the overlay, leaving name pristine. Once the
// copy is complete the overlay already shadows the backing entry, so a failure to
// record the tombstone leaves the merged view correct and is reported as is.
func (w *Writer) relocate(name string, info fs.FileInfo) error {
	if err := ops.MakeDirs(w.overlay, store.Parent(name), true); err != nil {
		return errors.Wrapf(err, "cannot relocate %s", name)
	}

	var err error
	if info.IsDir() {
		err = w.relocateDir(name, info)
	} else {
		err = w.relocateFile(name, info)
	}
	if err != nil {
		return err
	}

	if err := w.tombstones.Add(name); err != nil {
		return err
	}
	w.log.Debug().
		Str("path", name).
		Bool("dir", info.IsDir()).
		Int64("size", info.Size()).
		Msg("relocated backing entry into overlay")
	return nil
}

func (w *Writer) relocateFile(name string, info fs.FileInfo) error {
	err := ops.CopyFileWritable(w.backing, name, w.overlay, name, w.copyBufferSize)
	if err == nil {
		return nil
	}

	if rmErr := w.overlay.Remove(name); rmErr != nil && !store.IsNotExist(rmErr) {
		w.log.Warn().Err(rmErr).Str("path", name).Msg("cannot remove partial relocation")
	}
	return errors.Wrapf(err, "cannot relocate %s", name)
}

// relocateDir creates an empty overlay directory carrying the backing attributes.
// The owner keeps full access so children can be created. Children stay where
// they are.
func (w *Writer) relocateDir(name string, info fs.FileInfo) error {
	if err := w.overlay.MakeDir(name, true); err != nil {
		return errors.Wrapf(err, "cannot relocate %s", name)
	}

	if perm := info.Mode().Perm(); perm != 0 {
		if err := w.overlay.SetInfo(name, store.ModeAttrs(perm|ownerDirPerm)); err != nil {
			if rmErr := w.overlay.RemoveDir(name); rmErr != nil && !store.IsNotExist(rmErr) {
				w.log.Warn().Err(rmErr).Str("path", name).Msg("cannot remove partial relocation")
			}
			return errors.Wrapf(err, "cannot relocate %s", name)
		}
	}
	mtime := info.ModTime()
	_ = w.overlay.SetInfo(name, store.TimeAttrs(mtime, mtime))
	return nil
}
