package store

import (
	"archive/zip"
	"io/fs"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"
)

// Afero is a store over any afero.Fs.
type Afero struct {
	backed
	fs afero.Fs
}

var _ FS = (*Afero)(nil)

// AferoOption configures an Afero store.
type AferoOption func(*Afero)

// WithLabel sets the name the store reports in String.
func WithLabel(label string) AferoOption {
	return func(s *Afero) {
		s.label = label
	}
}

// WithMeta replaces the default filesystem metadata.
func WithMeta(meta Meta) AferoOption {
	return func(s *Afero) {
		s.meta = meta
	}
}

// WithCloser registers a function run once when the store is closed.
func WithCloser(fn func() error) AferoOption {
	return func(s *Afero) {
		s.closer = fn
	}
}

// FromAfero returns a store over fsys.
func FromAfero(fsys afero.Fs, opts ...AferoOption) *Afero {
	s := &Afero{
		fs: fsys,
		backed: backed{
			label: fsys.Name(),
			meta: Meta{
				InvalidPathChars: "\x00",
				SupportsRename:   true,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.be = aferoBackend{fs: s.fs}
	return s
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Afero {
	return FromAfero(afero.NewMemMapFs(),
		WithLabel("mem://"),
		WithMeta(Meta{InvalidPathChars: "\x00", SupportsRename: true, Virtual: true}),
	)
}

// NewTemp returns a store over a fresh temporary directory created in dir (the
// system default when empty). The directory is deleted when the store is closed.
func NewTemp(dir, prefix string) (*Afero, error) {
	osfs := afero.NewOsFs()
	root, err := afero.TempDir(osfs, dir, prefix)
	if err != nil {
		return nil, ConstructionFailed("temporary store", err)
	}
	return FromAfero(afero.NewBasePathFs(osfs, root),
		WithLabel("temp://"+root),
		WithCloser(func() error { return osfs.RemoveAll(root) }),
	), nil
}

// NewDir returns a store over the existing directory root. Content outlives the store.
func NewDir(root string) (*Afero, error) {
	osfs := afero.NewOsFs()
	info, err := osfs.Stat(root)
	if err != nil {
		return nil, ConstructionFailed("directory store "+root, err)
	}
	if !info.IsDir() {
		return nil, ConstructionFailed("directory store "+root, ErrDirectoryExpected)
	}
	return FromAfero(afero.NewBasePathFs(osfs, root), WithLabel("file://"+root)), nil
}

// NewZip returns a read-only store over the zip archive at path.
func NewZip(path string) (*Afero, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, ConstructionFailed("zip store "+path, err)
	}
	return FromAfero(zipfs.New(&r.Reader),
		WithLabel("zip://"+path),
		WithMeta(Meta{ReadOnly: true, InvalidPathChars: "\x00"}),
		WithCloser(r.Close),
	), nil
}

// Afero returns the underlying afero.Fs.
func (s *Afero) Afero() afero.Fs {
	return s.fs
}

type aferoBackend struct {
	fs afero.Fs
}

func (b aferoBackend) Stat(name string) (fs.FileInfo, error) {
	return b.fs.Stat(name)
}

func (b aferoBackend) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	return b.fs.OpenFile(name, flag, perm)
}

func (b aferoBackend) ReadDirNames(name string) ([]string, error) {
	infos, err := afero.ReadDir(b.fs, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func (b aferoBackend) Mkdir(name string, perm fs.FileMode) error {
	return b.fs.Mkdir(name, perm)
}

func (b aferoBackend) Remove(name string) error {
	return b.fs.Remove(name)
}

func (b aferoBackend) Chmod(name string, mode fs.FileMode) error {
	return b.fs.Chmod(name, mode)
}

func (b aferoBackend) Chtimes(name string, atime, mtime time.Time) error {
	return b.fs.Chtimes(name, atime, mtime)
}

func (b aferoBackend) Chown(name string, uid, gid int) error {
	return b.fs.Chown(name, uid, gid)
}
