package store

import (
	"io/fs"
	"syscall"

	"emperror.dev/errors"
)

var (
	// ErrNotFound is returned when a path is absent.
	ErrNotFound = fs.ErrNotExist
	// ErrAlreadyExists is returned on an exclusive create or a directory collision.
	ErrAlreadyExists = fs.ErrExist
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = fs.ErrClosed
	// ErrInvalidPath is returned for paths holding an invalid character.
	ErrInvalidPath = fs.ErrInvalid
	// ErrDirectoryExpected is returned when a file is found where a directory is needed.
	ErrDirectoryExpected = errors.NewPlain("directory expected")
	// ErrFileExpected is returned when a directory is found where a file is needed.
	ErrFileExpected = errors.NewPlain("file expected")
	// ErrDirectoryNotEmpty is returned when removing a directory that has children.
	ErrDirectoryNotEmpty = errors.NewPlain("directory not empty")
	// ErrRemoveRoot is returned when removing the root directory.
	ErrRemoveRoot = errors.NewPlain("root directory may not be removed")
	// ErrReadOnly is returned when mutating a read-only store.
	ErrReadOnly = errors.NewPlain("store is read-only")
	// ErrConstructionFailed is returned when a store cannot be initialised.
	ErrConstructionFailed = errors.NewPlain("construction failed")
)

// ConstructionError reports a store that failed to initialise. It matches both
// ErrConstructionFailed and its cause with errors.Is.
type ConstructionError struct {
	What string
	Err  error
}

func (e *ConstructionError) Error() string {
	return "cannot construct " + e.What + ": " + e.Err.Error()
}

func (e *ConstructionError) Unwrap() []error {
	return []error{ErrConstructionFailed, e.Err}
}

// ConstructionFailed wraps cause as a *ConstructionError.
func ConstructionFailed(what string, cause error) error {
	return &ConstructionError{What: what, Err: cause}
}

// PathErr builds the *fs.PathError every operation returns.
func PathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// IsNotExist reports whether err means the path is absent. A path crossing a
// regular file counts as absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// translate maps an error from an underlying filesystem onto the store error kinds.
func translate(op, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotExist(err):
		return PathErr(op, name, ErrNotFound)
	case errors.Is(err, fs.ErrExist):
		return PathErr(op, name, ErrAlreadyExists)
	case errors.Is(err, syscall.ENOTEMPTY):
		return PathErr(op, name, ErrDirectoryNotEmpty)
	case errors.Is(err, syscall.EISDIR):
		return PathErr(op, name, ErrFileExpected)
	case errors.Is(err, syscall.EROFS):
		return PathErr(op, name, ErrReadOnly)
	case errors.Is(err, fs.ErrClosed):
		return PathErr(op, name, ErrClosed)
	}
	return errors.WithStack(PathErr(op, name, err))
}
