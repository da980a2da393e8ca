/*
Package proxyfs makes a read-only store look fully writable, with copy-on-write
semantics and lazy relocation.

# Overview

A Writer sits on top of a backing store it never modifies. Every write lands in an
overlay store; unmodified content keeps being served straight from the backing
store. The overlay therefore only ever holds the difference between the original
tree and the tree the caller sees.

Three structures decide what is visible:

  - the backing store, read-only and possibly empty
  - the overlay store, writable and owned by the Writer
  - the tombstone set, paths whose backing version must stay hidden

A path exists when the overlay has it, or when the backing store has it and it is
not tombstoned. The overlay always wins.

# Basic Usage

	package main

	import (
	    "github.com/absfs/proxyfs"
	    "github.com/absfs/proxyfs/store"
	)

	func main() {
	    backing, _ := store.NewZip("release.zip")
	    defer backing.Close()

	    w, _ := proxyfs.New(backing)
	    defer w.Close()

	    // Reads come from the archive
	    data, _ := w.ReadFile("/etc/config.yml")

	    // Writes go to the in-memory overlay
	    _ = w.WriteFile("/etc/custom.yml", []byte("key: value"))

	    // Appending relocates the archived file first
	    _ = w.AppendFile("/etc/config.yml", []byte("extra: true\n"))
	}

# Relocation

A write that keeps the existing bytes (append, or update without truncation) to a
file only the backing store has copies the file into the overlay first, together
with its mode and modification time, and tombstones the path so it is never
copied twice. A truncating write skips the copy: the new content replaces the old
one anyway. Changing metadata relocates too; a directory relocates as an empty
overlay directory whose children stay in the backing store.

If the copy fails half way, the partial overlay file is removed again so the path
is left untouched.

# Deletion

Removing a path deletes it from the overlay if it is there and tombstones it, which
hides the backing version:

	_ = w.Remove("/file.txt")

	ok, _ := w.Exists("/file.txt")           // false
	ok, _ = w.Backing().Exists("/file.txt")  // true

# Directory Merging

Listing a directory returns the overlay children first, then the backing children
that are not tombstoned, each name once.

# Derived Operations

Recursive creation, walking, copying, moving, globbing and usage accounting come from
package ops and only ever call the Writer's essential operations. Nothing is handed
to a store's own bulk routine, which would bypass relocation and tombstones.

	_ = w.MakeDirs("/a/b/c", true)
	_ = w.RemoveTree("/tmp")
	n, _ := w.Usage()

# Swapping

A Swap starts with an in-memory overlay and moves it, once, to a secondary store
(a temporary directory by default) when the overlay holds more bytes than its
threshold:

	s, _ := proxyfs.NewSwap(backing, proxyfs.WithThreshold(64<<20))
	defer s.Close()

The default threshold is half of the system memory.

# Compatibility

FileSystem returns an absfs.FileSystem view of the merged tree, so a Writer can be
used wherever absfs filesystems are accepted.

# Thread Safety

A Writer holds no locks. Callers sharing one between goroutines must serialise
access themselves. The optional backing cache is safe for concurrent use.

# Limitations

  - Rename is a copy followed by a removal
  - Symlinks and hard links are not supported
  - A swap never goes back to memory
*/
package proxyfs
