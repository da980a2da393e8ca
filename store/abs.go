package store

import (
	"io/fs"
	"sort"
	"time"

	"github.com/absfs/absfs"
)

// Abs is a store over an absfs.FileSystem such as memfs.
type Abs struct {
	backed
	fs absfs.FileSystem
}

var _ FS = (*Abs)(nil)

// FromAbsFS returns a store over fsys. A non-nil closer runs once on Close.
func FromAbsFS(fsys absfs.FileSystem, label string, closer func() error) *Abs {
	return &Abs{
		fs: fsys,
		backed: backed{
			be:     absBackend{fs: fsys},
			label:  label,
			closer: closer,
			meta: Meta{
				InvalidPathChars: "\x00",
				SupportsRename:   true,
			},
		},
	}
}

// FileSystem returns the underlying absfs.FileSystem.
func (s *Abs) FileSystem() absfs.FileSystem {
	return s.fs
}

type absBackend struct {
	fs absfs.FileSystem
}

func (b absBackend) Stat(name string) (fs.FileInfo, error) {
	return b.fs.Stat(name)
}

func (b absBackend) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	return b.fs.OpenFile(name, flag, perm)
}

func (b absBackend) ReadDirNames(name string) ([]string, error) {
	dir, err := b.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	// some absfs implementations report the dot entries
	filtered := names[:0]
	for _, n := range names {
		if n == "." || n == ".." {
			continue
		}
		filtered = append(filtered, n)
	}
	sort.Strings(filtered)
	return filtered, nil
}

func (b absBackend) Mkdir(name string, perm fs.FileMode) error {
	return b.fs.Mkdir(name, perm)
}

func (b absBackend) Remove(name string) error {
	return b.fs.Remove(name)
}

func (b absBackend) Chmod(name string, mode fs.FileMode) error {
	return b.fs.Chmod(name, mode)
}

func (b absBackend) Chtimes(name string, atime, mtime time.Time) error {
	return b.fs.Chtimes(name, atime, mtime)
}

func (b absBackend) Chown(name string, uid, gid int) error {
	return b.fs.Chown(name, uid, gid)
}
