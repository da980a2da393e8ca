package ops

import (
	"io"
	"io/fs"
	"os"
	"strings"

	"emperror.dev/errors"

	"github.com/absfs/proxyfs/store"
)

// OwnerWrite is the permission bit CopyFileWritable always keeps.
const OwnerWrite fs.FileMode = 0o200

// CopyFile copies the content, permission bits and modification time of the file
// srcName in src to dstName in dst, replacing any file already there.
func CopyFile(src store.FS, srcName string, dst store.FS, dstName string, bufSize int) error {
	return copyFile(src, srcName, dst, dstName, bufSize, 0)
}

// CopyFileWritable is CopyFile for a copy that is about to be edited: the copy keeps
// the owner write bit even when the source is read-only.
func CopyFileWritable(src store.FS, srcName string, dst store.FS, dstName string, bufSize int) error {
	return copyFile(src, srcName, dst, dstName, bufSize, OwnerWrite)
}

func copyFile(src store.FS, srcName string, dst store.FS, dstName string, bufSize int, extra fs.FileMode) error {
	info, err := src.Stat(srcName)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return store.PathErr("copy", srcName, store.ErrFileExpected)
	}

	in, err := src.OpenFile(srcName, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := dst.OpenFile(dstName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|extra)
	if err != nil {
		return err
	}

	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if _, err := io.CopyBuffer(out, in, make([]byte, bufSize)); err != nil {
		out.Close()
		return errors.Wrapf(err, "cannot copy %s to %s", srcName, dstName)
	}
	if err := out.Close(); err != nil {
		return err
	}

	return copyAttrs(dst, dstName, info, extra)
}

// copyAttrs carries mode and modification time over, adding the extra bits to the
// mode. Time is best effort; not every store tracks it.
func copyAttrs(dst store.FS, name string, info fs.FileInfo, extra fs.FileMode) error {
	if perm := info.Mode().Perm(); perm != 0 {
		perm |= extra
		if err := dst.SetInfo(name, store.ModeAttrs(perm)); err != nil {
			return err
		}
	}
	mtime := info.ModTime()
	_ = dst.SetInfo(name, store.TimeAttrs(mtime, mtime))
	return nil
}

// CopyDir copies the tree rooted at srcName in src to dstName in dst, creating
// dstName and its missing parents.
func CopyDir(src store.FS, srcName string, dst store.FS, dstName string, bufSize int) error {
	srcName = store.Clean(srcName)
	dstName = store.Clean(dstName)
	if err := MakeDirs(dst, dstName, true); err != nil {
		return err
	}
	return Walk(src, srcName, func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		target := store.Join(dstName, strings.TrimPrefix(name, srcName))
		if info.IsDir() {
			// directories keep the store default mode so children can be written
			if err := dst.MakeDir(target, true); err != nil {
				return err
			}
			mtime := info.ModTime()
			_ = dst.SetInfo(target, store.TimeAttrs(mtime, mtime))
			return nil
		}
		return CopyFile(src, name, dst, target, bufSize)
	})
}

// CopyFS copies the whole content of src into dst.
func CopyFS(src, dst store.FS, bufSize int) error {
	return CopyDir(src, store.Root, dst, store.Root, bufSize)
}

// Move relocates srcName to dstName inside fsys by copying then removing. A file
// replaces an existing destination file; a directory needs a free destination.
func Move(fsys store.FS, srcName, dstName string, bufSize int) error {
	srcName = store.Clean(srcName)
	dstName = store.Clean(dstName)
	if srcName == dstName {
		return nil
	}

	info, err := fsys.Stat(srcName)
	if err != nil {
		return err
	}
	dstInfo, err := Info(fsys, dstName)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if dstInfo != nil && dstInfo.IsDir() {
			return store.PathErr("move", dstName, store.ErrFileExpected)
		}
		if err := CopyFile(fsys, srcName, fsys, dstName, bufSize); err != nil {
			return err
		}
		return fsys.Remove(srcName)
	}

	if store.IsRoot(srcName) || strings.HasPrefix(dstName+"/", srcName+"/") {
		return store.PathErr("move", dstName, store.ErrInvalidPath)
	}
	if dstInfo != nil {
		return store.PathErr("move", dstName, store.ErrAlreadyExists)
	}
	if err := CopyDir(fsys, srcName, fsys, dstName, bufSize); err != nil {
		return err
	}
	return RemoveTree(fsys, srcName)
}
