package proxyfs

import (
	"io"
	"os"
	"path"

	"github.com/absfs/proxyfs/store"
)

// mergedDir is an open directory of a store, listing the children its ReadDir
// reports. Over a Writer that is the merged view.
type mergedDir struct {
	fsys    store.FS
	path    string
	entries []os.FileInfo
	offset  int
	closed  bool
}

var _ store.File = (*mergedDir)(nil)

func newMergedDir(fsys store.FS, path string) *mergedDir {
	return &mergedDir{fsys: fsys, path: path}
}

// Close closes the directory
func (d *mergedDir) Close() error {
	d.closed = true
	return nil
}

// Read is not supported for directories
func (d *mergedDir) Read(p []byte) (n int, err error) {
	return 0, os.ErrInvalid
}

// ReadAt is not supported for directories
func (d *mergedDir) ReadAt(p []byte, off int64) (n int, err error) {
	return 0, os.ErrInvalid
}

// Seek seeks to an offset in the directory listing
func (d *mergedDir) Seek(offset int64, whence int) (int64, error) {
	if d.closed {
		return 0, os.ErrClosed
	}

	switch whence {
	case io.SeekStart:
		d.offset = int(offset)
	case io.SeekCurrent:
		d.offset += int(offset)
	case io.SeekEnd:
		if d.entries == nil {
			if err := d.loadEntries(); err != nil {
				return 0, err
			}
		}
		d.offset = len(d.entries) + int(offset)
	}

	if d.offset < 0 {
		d.offset = 0
	}

	return int64(d.offset), nil
}

// Write is not supported for directories
func (d *mergedDir) Write(p []byte) (n int, err error) {
	return 0, os.ErrInvalid
}

// WriteAt is not supported for directories
func (d *mergedDir) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, os.ErrInvalid
}

// Name returns the base name of the directory
func (d *mergedDir) Name() string {
	return path.Base(d.path)
}

// Readdir reads directory entries
func (d *mergedDir) Readdir(count int) ([]os.FileInfo, error) {
	if d.closed {
		return nil, os.ErrClosed
	}

	if d.entries == nil {
		if err := d.loadEntries(); err != nil {
			return nil, err
		}
	}

	if d.offset >= len(d.entries) {
		if count > 0 {
			return nil, io.EOF
		}
		return nil, nil
	}

	end := len(d.entries)
	if count > 0 && d.offset+count < end {
		end = d.offset + count
	}

	result := d.entries[d.offset:end]
	d.offset = end
	return result, nil
}

// Readdirnames reads directory entry names
func (d *mergedDir) Readdirnames(count int) ([]string, error) {
	infos, err := d.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}

	return names, nil
}

// Stat returns the FileInfo for the directory
func (d *mergedDir) Stat() (os.FileInfo, error) {
	if d.closed {
		return nil, os.ErrClosed
	}
	return d.fsys.Stat(d.path)
}

// Sync is a no-op for directories
func (d *mergedDir) Sync() error {
	return nil
}

// Truncate is not supported for directories
func (d *mergedDir) Truncate(size int64) error {
	return os.ErrInvalid
}

// WriteString is not supported for directories
func (d *mergedDir) WriteString(s string) (ret int, err error) {
	return 0, os.ErrInvalid
}

// loadEntries snapshots the merged listing, in the order ReadDir returns it.
func (d *mergedDir) loadEntries() error {
	names, err := d.fsys.ReadDir(d.path)
	if err != nil {
		return err
	}

	entries := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		info, err := d.fsys.Stat(store.Join(d.path, name))
		if err != nil {
			return err
		}
		entries = append(entries, info)
	}

	d.entries = entries
	return nil
}
