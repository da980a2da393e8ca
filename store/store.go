// Package store defines the capability contract every store in proxyfs satisfies,
// along with the stores built on afero and absfs filesystems.
//
// A store exposes only essential operations. Anything that can be expressed in terms
// of them (recursive creation, walking, copying, usage accounting) lives in package
// ops and is shared by every store-like type, the overlay included.
package store

import (
	"io"
	"io/fs"
	"os"
	"time"
)

// DefaultFilePerm is used when a file is created with a zero permission.
const DefaultFilePerm fs.FileMode = 0o666

// DefaultDirPerm is used for every directory created by a store.
const DefaultDirPerm fs.FileMode = 0o755

// FS is the set of essential operations of a store.
//
// Paths are slash separated. Every implementation normalises them with Clean, so
// "a/b", "/a/b" and "/a/./b" name the same entry and "" is the root.
type FS interface {
	// Exists reports whether name is present.
	Exists(name string) (bool, error)
	// Stat returns the metadata of name.
	Stat(name string) (fs.FileInfo, error)
	// ReadDir returns the names of the children of the directory name. Plain stores
	// sort them; an overlay lists its own children first.
	ReadDir(name string) ([]string, error)
	// OpenFile opens name with os.O_* flags. Opening a directory fails with
	// ErrFileExpected.
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
	// MakeDir creates the single directory name. Its parent must exist. If name
	// already is a directory, MakeDir succeeds only when recreate is set.
	MakeDir(name string, recreate bool) error
	// Remove removes the file name.
	Remove(name string) error
	// RemoveDir removes the empty directory name.
	RemoveDir(name string) error
	// SetInfo applies attrs to name.
	SetInfo(name string, attrs Attrs) error
	// Meta describes the store.
	Meta() Meta
	// Close releases the store. Every later call fails with ErrClosed.
	Close() error
}

// File is a handle on an open file. afero.File and absfs.File both satisfy it.
type File interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.WriterAt
	io.Seeker
	io.Closer

	Name() string
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	WriteString(s string) (int, error)
	Readdir(count int) ([]os.FileInfo, error)
	Readdirnames(n int) ([]string, error)
}

// Attrs is a metadata update. Nil fields are left as they are.
type Attrs struct {
	Mode  *fs.FileMode
	ATime *time.Time
	MTime *time.Time
	UID   *int
	GID   *int
}

// ModeAttrs returns Attrs that only change the permission bits.
func ModeAttrs(mode fs.FileMode) Attrs {
	return Attrs{Mode: &mode}
}

// TimeAttrs returns Attrs that only change access and modification times.
func TimeAttrs(atime, mtime time.Time) Attrs {
	return Attrs{ATime: &atime, MTime: &mtime}
}

// Empty reports whether attrs changes nothing.
func (a Attrs) Empty() bool {
	return a.Mode == nil && a.ATime == nil && a.MTime == nil && a.UID == nil && a.GID == nil
}

// Meta is the filesystem-level metadata of a store.
type Meta struct {
	ReadOnly         bool   `yaml:"read_only"`
	CaseInsensitive  bool   `yaml:"case_insensitive"`
	InvalidPathChars string `yaml:"invalid_path_chars"`
	MaxPathLength    int    `yaml:"max_path_length"`
	SupportsRename   bool   `yaml:"supports_rename"`
	Virtual          bool   `yaml:"virtual"`
	Network          bool   `yaml:"network"`
}

// IsWrite reports whether flag may modify or create the file it opens.
func IsWrite(flag int) bool {
	return flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0
}
