// Package ops provides every derived filesystem operation, written only in terms of
// the essential operations of store.FS.
//
// The functions never look for a specialised bulk routine on the store they are
// given. A type that layers bookkeeping over other stores (the overlay writer, the
// swap controller) must see every recursive removal, copy or walk arrive as a
// sequence of its own primitive calls, or the bookkeeping silently drifts.
//
// A type gains these operations as methods by embedding an Ops bound to itself:
//
//	type Writer struct {
//	    ops.Ops
//	    ...
//	}
//
//	w.Ops = ops.Bind(w)
package ops

import (
	"io/fs"

	"github.com/absfs/proxyfs/store"
)

// DefaultBufferSize is the copy buffer size used when none is configured.
const DefaultBufferSize = 32 * 1024

// Ops binds the derived operations to one store.
type Ops struct {
	fsys    store.FS
	bufSize int
}

// Bind returns the derived operations of fsys.
func Bind(fsys store.FS) Ops {
	return Ops{fsys: fsys, bufSize: DefaultBufferSize}
}

// BindBuffer is Bind with an explicit copy buffer size.
func BindBuffer(fsys store.FS, bufSize int) Ops {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return Ops{fsys: fsys, bufSize: bufSize}
}

func (o Ops) MakeDirs(name string, recreate bool) error {
	return MakeDirs(o.fsys, name, recreate)
}

func (o Ops) IsDir(name string) (bool, error) {
	return IsDir(o.fsys, name)
}

func (o Ops) IsFile(name string) (bool, error) {
	return IsFile(o.fsys, name)
}

func (o Ops) IsEmpty(name string) (bool, error) {
	return IsEmpty(o.fsys, name)
}

func (o Ops) ReadFile(name string) ([]byte, error) {
	return ReadFile(o.fsys, name)
}

func (o Ops) WriteFile(name string, data []byte) error {
	return WriteFile(o.fsys, name, data)
}

func (o Ops) AppendFile(name string, data []byte) error {
	return AppendFile(o.fsys, name, data)
}

func (o Ops) Touch(name string) error {
	return Touch(o.fsys, name)
}

func (o Ops) Walk(root string, fn WalkFunc) error {
	return Walk(o.fsys, root, fn)
}

func (o Ops) RemoveTree(name string) error {
	return RemoveTree(o.fsys, name)
}

func (o Ops) Copy(src, dst string) error {
	return CopyFile(o.fsys, src, o.fsys, dst, o.bufSize)
}

func (o Ops) CopyDir(src, dst string) error {
	return CopyDir(o.fsys, src, o.fsys, dst, o.bufSize)
}

func (o Ops) Move(src, dst string) error {
	return Move(o.fsys, src, dst, o.bufSize)
}

func (o Ops) Glob(pattern string) ([]string, error) {
	return Glob(o.fsys, pattern)
}

func (o Ops) Usage() (int64, error) {
	return Usage(o.fsys)
}

// Info is Stat with a not-found path reported as a nil info.
func Info(fsys store.FS, name string) (fs.FileInfo, error) {
	info, err := fsys.Stat(name)
	if err != nil {
		if store.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}
