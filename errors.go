package proxyfs

import "github.com/absfs/proxyfs/store"

// Error kinds, shared with package store. Operations return them wrapped in an
// *fs.PathError; match with errors.Is.
var (
	ErrNotFound           = store.ErrNotFound
	ErrAlreadyExists      = store.ErrAlreadyExists
	ErrClosed             = store.ErrClosed
	ErrInvalidPath        = store.ErrInvalidPath
	ErrDirectoryExpected  = store.ErrDirectoryExpected
	ErrFileExpected       = store.ErrFileExpected
	ErrDirectoryNotEmpty  = store.ErrDirectoryNotEmpty
	ErrRemoveRoot         = store.ErrRemoveRoot
	ErrReadOnly           = store.ErrReadOnly
	ErrConstructionFailed = store.ErrConstructionFailed
)
