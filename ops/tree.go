package ops

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"emperror.dev/errors"

	"github.com/absfs/proxyfs/store"
)

// SkipDir can be returned by a WalkFunc to skip the directory it was called on,
// or the rest of the directory holding the file it was called on.
var SkipDir = fs.SkipDir

// WalkFunc is called for every entry visited by Walk. If Stat fails on an entry,
// info is nil and err holds the failure.
type WalkFunc func(name string, info fs.FileInfo, err error) error

// MakeDirs creates name and every missing directory above it.
func MakeDirs(fsys store.FS, name string, recreate bool) error {
	name = store.Clean(name)
	if store.IsRoot(name) {
		if recreate {
			return nil
		}
		return store.PathErr("mkdir", name, store.ErrAlreadyExists)
	}
	for _, dir := range store.Ancestors(name)[1:] {
		if err := fsys.MakeDir(dir, true); err != nil {
			return err
		}
	}
	return fsys.MakeDir(name, recreate)
}

// Walk visits root and everything below it, depth first, directories before their
// children, children in name order.
func Walk(fsys store.FS, root string, fn WalkFunc) error {
	root = store.Clean(root)
	info, err := fsys.Stat(root)
	if err != nil {
		err = fn(root, nil, err)
	} else {
		err = walk(fsys, root, info, fn)
	}
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(fsys store.FS, name string, info fs.FileInfo, fn WalkFunc) error {
	if !info.IsDir() {
		return fn(name, info, nil)
	}

	if err := fn(name, info, nil); err != nil {
		return err
	}

	names, err := fsys.ReadDir(name)
	if err != nil {
		return fn(name, info, err)
	}

	for _, n := range names {
		child := path.Join(name, n)
		childInfo, err := fsys.Stat(child)
		if err != nil {
			if err := fn(child, nil, err); err != nil && !errors.Is(err, SkipDir) {
				return err
			}
			continue
		}
		if err := walk(fsys, child, childInfo, fn); err != nil {
			if !errors.Is(err, SkipDir) {
				return err
			}
			if !childInfo.IsDir() {
				return nil
			}
		}
	}
	return nil
}

// RemoveTree removes name and everything below it. Removing the root empties it.
func RemoveTree(fsys store.FS, name string) error {
	name = store.Clean(name)
	info, err := fsys.Stat(name)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fsys.Remove(name)
	}

	names, err := fsys.ReadDir(name)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := RemoveTree(fsys, path.Join(name, n)); err != nil {
			return err
		}
	}

	if store.IsRoot(name) {
		return nil
	}
	return fsys.RemoveDir(name)
}

// Usage sums the sizes of every file in fsys. Entries whose size cannot be read
// count as zero.
func Usage(fsys store.FS) (int64, error) {
	var total int64
	err := Walk(fsys, store.Root, func(name string, info fs.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Glob returns the paths matching pattern, one path.Match pattern per segment.
func Glob(fsys store.FS, pattern string) ([]string, error) {
	segments := store.Split(pattern)
	for _, seg := range segments {
		if _, err := path.Match(seg, ""); err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", pattern)
		}
	}

	matches := []string{store.Root}
	for _, seg := range segments {
		var next []string
		for _, dir := range matches {
			found, err := globSegment(fsys, dir, seg)
			if err != nil {
				return nil, err
			}
			next = append(next, found...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		matches = next
	}
	sort.Strings(matches)
	return matches, nil
}

func globSegment(fsys store.FS, dir, seg string) ([]string, error) {
	if !strings.ContainsAny(seg, `*?[\`) {
		name := path.Join(dir, seg)
		ok, err := fsys.Exists(name)
		if err != nil || !ok {
			return nil, err
		}
		return []string{name}, nil
	}

	isDir, err := IsDir(fsys, dir)
	if err != nil || !isDir {
		return nil, err
	}
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, n := range names {
		if ok, _ := path.Match(seg, n); ok {
			found = append(found, path.Join(dir, n))
		}
	}
	return found, nil
}
