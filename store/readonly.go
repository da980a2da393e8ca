package store

import "io/fs"

// readOnly rejects every mutation of the wrapped store.
type readOnly struct {
	FS
}

// NewReadOnly wraps fsys so that every mutation fails with ErrReadOnly.
func NewReadOnly(fsys FS) FS {
	return readOnly{FS: fsys}
}

func (r readOnly) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	if IsWrite(flag) {
		return nil, PathErr("open", name, ErrReadOnly)
	}
	return r.FS.OpenFile(name, flag, perm)
}

func (r readOnly) MakeDir(name string, recreate bool) error {
	return PathErr("mkdir", name, ErrReadOnly)
}

func (r readOnly) Remove(name string) error {
	return PathErr("remove", name, ErrReadOnly)
}

func (r readOnly) RemoveDir(name string) error {
	return PathErr("removedir", name, ErrReadOnly)
}

func (r readOnly) SetInfo(name string, attrs Attrs) error {
	return PathErr("setinfo", name, ErrReadOnly)
}

func (r readOnly) Meta() Meta {
	meta := r.FS.Meta()
	meta.ReadOnly = true
	return meta
}

func (r readOnly) String() string {
	if s, ok := r.FS.(interface{ String() string }); ok {
		return "ro:" + s.String()
	}
	return "ro"
}
