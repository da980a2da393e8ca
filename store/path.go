package store

import (
	"path"
	"strings"
)

// Root is the root path shared by every store.
const Root = "/"

// Clean normalises name into an absolute slash path. The empty path is the root.
func Clean(name string) string {
	return path.Clean("/" + name)
}

// Parent returns the parent directory of name. The parent of the root is the root.
func Parent(name string) string {
	return path.Dir(Clean(name))
}

// Join joins a directory and a child name.
func Join(dir, name string) string {
	return path.Join(Clean(dir), name)
}

// IsRoot reports whether name is the root path.
func IsRoot(name string) bool {
	return Clean(name) == Root
}

// Validate cleans name and rejects it if it holds one of the invalid characters.
func Validate(op, name, invalid string) (string, error) {
	if invalid != "" && strings.ContainsAny(name, invalid) {
		return name, PathErr(op, name, ErrInvalidPath)
	}
	return Clean(name), nil
}

// Split returns the components of name, without the root.
func Split(name string) []string {
	name = Clean(name)
	if name == Root {
		return nil
	}
	return strings.Split(name[1:], "/")
}

// Ancestors returns every directory above name, root first, name excluded.
func Ancestors(name string) []string {
	parts := Split(name)
	if len(parts) == 0 {
		return nil
	}
	dirs := make([]string, 0, len(parts))
	current := Root
	dirs = append(dirs, current)
	for _, part := range parts[:len(parts)-1] {
		current = path.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}
