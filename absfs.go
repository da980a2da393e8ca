package proxyfs

import (
	"os"
	"time"

	"github.com/absfs/absfs"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

// absFSAdapter exposes a store as an absfs.Filer
type absFSAdapter struct {
	fsys    store.FS
	bufSize int
}

// Ensure absFSAdapter implements absfs.Filer interface at compile time
var _ absfs.Filer = (*absFSAdapter)(nil)

// FileSystem returns an absfs.FileSystem view of the merged tree.
// The returned FileSystem maintains its own working directory state
// and provides the full absfs.FileSystem interface including convenience
// methods like Open, Create, MkdirAll, RemoveAll, and Truncate.
//
// Every call goes through the Writer, so relocation and tombstones apply
// exactly as they do to direct calls.
//
// Example:
//
//	w, _ := proxyfs.New(backing)
//
//	fs := w.FileSystem()
//	fs.Chdir("/app")
//	file, err := fs.Open("config.yml") // Uses current working directory
func (w *Writer) FileSystem() absfs.FileSystem {
	return absfs.ExtendFiler(&absFSAdapter{fsys: w, bufSize: w.copyBufferSize})
}

// OpenFile implements absfs.Filer. Directories open as listing handles.
func (a *absFSAdapter) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	name = store.Clean(name)
	if !store.IsWrite(flag) {
		if info, err := a.fsys.Stat(name); err == nil && info.IsDir() {
			return newMergedDir(a.fsys, name), nil
		}
	}

	f, err := a.fsys.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Mkdir implements absfs.Filer
func (a *absFSAdapter) Mkdir(name string, perm os.FileMode) error {
	if err := a.fsys.MakeDir(name, false); err != nil {
		return err
	}
	if perm = perm.Perm(); perm != 0 && perm != store.DefaultDirPerm {
		return a.fsys.SetInfo(name, store.ModeAttrs(perm))
	}
	return nil
}

// Remove implements absfs.Filer, removing a file or an empty directory
func (a *absFSAdapter) Remove(name string) error {
	info, err := a.fsys.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return a.fsys.RemoveDir(name)
	}
	return a.fsys.Remove(name)
}

// Rename implements absfs.Filer by copying then removing
func (a *absFSAdapter) Rename(oldpath, newpath string) error {
	return ops.Move(a.fsys, oldpath, newpath, a.bufSize)
}

// Stat implements absfs.Filer
func (a *absFSAdapter) Stat(name string) (os.FileInfo, error) {
	return a.fsys.Stat(name)
}

// Chmod implements absfs.Filer
func (a *absFSAdapter) Chmod(name string, mode os.FileMode) error {
	return a.fsys.SetInfo(name, store.ModeAttrs(mode))
}

// Chtimes implements absfs.Filer
func (a *absFSAdapter) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return a.fsys.SetInfo(name, store.TimeAttrs(atime, mtime))
}

// Chown implements absfs.Filer
func (a *absFSAdapter) Chown(name string, uid, gid int) error {
	return a.fsys.SetInfo(name, store.Attrs{UID: &uid, GID: &gid})
}

// Separator returns the path separator (always forward slash for virtual paths)
func (a *absFSAdapter) Separator() uint8 {
	return '/'
}

// ListSeparator returns the path list separator (always colon for virtual paths)
func (a *absFSAdapter) ListSeparator() uint8 {
	return ':'
}

// Truncate changes the size of the named file. A backing file is relocated first
// so the bytes kept are its own.
func (a *absFSAdapter) Truncate(name string, size int64) error {
	f, err := a.fsys.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return &os.PathError{Op: "truncate", Path: store.Clean(name), Err: err}
	}
	return f.Close()
}
