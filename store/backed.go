package store

import (
	"io/fs"
	"os"
	"time"

	"emperror.dev/errors"
)

// backend is the narrow slice of a foreign filesystem a backed store relies on.
type backend interface {
	Stat(name string) (fs.FileInfo, error)
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
	ReadDirNames(name string) ([]string, error)
	Mkdir(name string, perm fs.FileMode) error
	Remove(name string) error
	Chmod(name string, mode fs.FileMode) error
	Chtimes(name string, atime, mtime time.Time) error
	Chown(name string, uid, gid int) error
}

// backed implements FS over a backend, enforcing the contract the foreign
// filesystem may be lax about (parent checks, emptiness, directory opens).
type backed struct {
	be     backend
	label  string
	meta   Meta
	closer func() error
	closed bool
}

func (b *backed) String() string {
	return b.label
}

func (b *backed) check(op, name string) (string, error) {
	if b.closed {
		return name, PathErr(op, name, ErrClosed)
	}
	return Validate(op, name, b.meta.InvalidPathChars)
}

func (b *backed) checkWritable(op, name string) (string, error) {
	name, err := b.check(op, name)
	if err != nil {
		return name, err
	}
	if b.meta.ReadOnly {
		return name, PathErr(op, name, ErrReadOnly)
	}
	return name, nil
}

// stat returns the info of name, or nil if it does not exist.
func (b *backed) stat(op, name string) (fs.FileInfo, error) {
	info, err := b.be.Stat(name)
	if err != nil {
		if IsNotExist(err) {
			return nil, nil
		}
		return nil, translate(op, name, err)
	}
	return info, nil
}

func (b *backed) requireDir(op, name string) error {
	info, err := b.stat(op, name)
	if err != nil {
		return err
	}
	if info == nil {
		return PathErr(op, name, ErrNotFound)
	}
	if !info.IsDir() {
		return PathErr(op, name, ErrDirectoryExpected)
	}
	return nil
}

func (b *backed) Exists(name string) (bool, error) {
	name, err := b.check("exists", name)
	if err != nil {
		return false, err
	}
	info, err := b.stat("exists", name)
	return info != nil, err
}

func (b *backed) Stat(name string) (fs.FileInfo, error) {
	name, err := b.check("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := b.be.Stat(name)
	if err != nil {
		return nil, translate("stat", name, err)
	}
	return info, nil
}

func (b *backed) ReadDir(name string) ([]string, error) {
	name, err := b.check("readdir", name)
	if err != nil {
		return nil, err
	}
	if err := b.requireDir("readdir", name); err != nil {
		return nil, err
	}
	names, err := b.be.ReadDirNames(name)
	if err != nil {
		return nil, translate("readdir", name, err)
	}
	return names, nil
}

func (b *backed) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	var err error
	if IsWrite(flag) {
		name, err = b.checkWritable("open", name)
	} else {
		name, err = b.check("open", name)
	}
	if err != nil {
		return nil, err
	}

	info, err := b.stat("open", name)
	if err != nil {
		return nil, err
	}
	switch {
	case info != nil && info.IsDir():
		return nil, PathErr("open", name, ErrFileExpected)
	case info != nil && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, PathErr("open", name, ErrAlreadyExists)
	case info == nil && flag&os.O_CREATE == 0:
		return nil, PathErr("open", name, ErrNotFound)
	case info == nil:
		if err := b.requireDir("open", Parent(name)); err != nil {
			return nil, err
		}
	}

	if perm == 0 {
		perm = DefaultFilePerm
	}
	f, err := b.be.OpenFile(name, flag, perm)
	if err != nil {
		return nil, translate("open", name, err)
	}
	return f, nil
}

func (b *backed) MakeDir(name string, recreate bool) error {
	name, err := b.checkWritable("mkdir", name)
	if err != nil {
		return err
	}
	info, err := b.stat("mkdir", name)
	if err != nil {
		return err
	}
	if info != nil {
		if info.IsDir() && recreate {
			return nil
		}
		return PathErr("mkdir", name, ErrAlreadyExists)
	}
	if err := b.requireDir("mkdir", Parent(name)); err != nil {
		return err
	}
	return translate("mkdir", name, b.be.Mkdir(name, DefaultDirPerm))
}

func (b *backed) Remove(name string) error {
	name, err := b.checkWritable("remove", name)
	if err != nil {
		return err
	}
	info, err := b.stat("remove", name)
	if err != nil {
		return err
	}
	if info == nil {
		return PathErr("remove", name, ErrNotFound)
	}
	if info.IsDir() {
		return PathErr("remove", name, ErrFileExpected)
	}
	return translate("remove", name, b.be.Remove(name))
}

func (b *backed) RemoveDir(name string) error {
	name, err := b.checkWritable("removedir", name)
	if err != nil {
		return err
	}
	if IsRoot(name) {
		return PathErr("removedir", name, ErrRemoveRoot)
	}
	if err := b.requireDir("removedir", name); err != nil {
		return err
	}
	names, err := b.be.ReadDirNames(name)
	if err != nil {
		return translate("removedir", name, err)
	}
	if len(names) > 0 {
		return PathErr("removedir", name, ErrDirectoryNotEmpty)
	}
	return translate("removedir", name, b.be.Remove(name))
}

func (b *backed) SetInfo(name string, attrs Attrs) error {
	name, err := b.checkWritable("setinfo", name)
	if err != nil {
		return err
	}
	info, err := b.stat("setinfo", name)
	if err != nil {
		return err
	}
	if info == nil {
		return PathErr("setinfo", name, ErrNotFound)
	}

	if attrs.Mode != nil {
		mode := *attrs.Mode & fs.ModePerm
		if err := b.be.Chmod(name, mode); err != nil {
			return translate("setinfo", name, err)
		}
	}
	if attrs.ATime != nil || attrs.MTime != nil {
		mtime := info.ModTime()
		if attrs.MTime != nil {
			mtime = *attrs.MTime
		}
		atime := mtime
		if attrs.ATime != nil {
			atime = *attrs.ATime
		}
		if err := b.be.Chtimes(name, atime, mtime); err != nil {
			return translate("setinfo", name, err)
		}
	}
	if attrs.UID != nil || attrs.GID != nil {
		uid, gid := -1, -1
		if attrs.UID != nil {
			uid = *attrs.UID
		}
		if attrs.GID != nil {
			gid = *attrs.GID
		}
		if err := b.be.Chown(name, uid, gid); err != nil {
			return translate("setinfo", name, err)
		}
	}
	return nil
}

func (b *backed) Meta() Meta {
	return b.meta
}

func (b *backed) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.closer == nil {
		return nil
	}
	if err := b.closer(); err != nil {
		return errors.Wrapf(err, "cannot close %s", b.label)
	}
	return nil
}
