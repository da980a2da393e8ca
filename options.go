package proxyfs

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
	"github.com/absfs/proxyfs/tombstone"
)

// Option is a functional option for configuring a Writer or a Swap.
type Option func(*options)

type options struct {
	overlay        store.FS
	secondary      store.FS
	tombstones     tombstone.Set
	closeBacking   bool
	threshold      uint64
	copyBufferSize int
	cache          *Cache
	logger         zerolog.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		copyBufferSize: ops.DefaultBufferSize,
		cache:          newCache(false, 0, 0, 0), // disabled by default
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithOverlay sets the store receiving every write. The overlay becomes owned by the
// Writer and is closed with it. Defaults to an empty in-memory store.
func WithOverlay(overlay store.FS) Option {
	return func(o *options) {
		o.overlay = overlay
	}
}

// WithSecondary sets the store a Swap migrates to once its threshold is crossed.
// Defaults to a fresh temporary directory. Ignored by a plain Writer.
func WithSecondary(secondary store.FS) Option {
	return func(o *options) {
		o.secondary = secondary
	}
}

// WithTombstones sets the tombstone set. It becomes owned by the Writer and is closed
// with it. Defaults to an empty in-memory set.
func WithTombstones(set tombstone.Set) Option {
	return func(o *options) {
		o.tombstones = set
	}
}

// WithCloseBacking makes Close also close the backing store.
func WithCloseBacking(enabled bool) Option {
	return func(o *options) {
		o.closeBacking = enabled
	}
}

// WithThreshold sets the overlay size in bytes above which a Swap migrates to its
// secondary store. Defaults to half of the system memory.
func WithThreshold(bytes uint64) Option {
	return func(o *options) {
		o.threshold = bytes
	}
}

// WithCopyBufferSize sets the buffer size used by relocation and derived copies.
func WithCopyBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.copyBufferSize = size
		}
	}
}

// WithBackingCache caches backing-store lookups. The backing store is never written
// through the Writer, so entries only expire with their TTL.
func WithBackingCache(enabled bool, ttl time.Duration, maxEntries int) Option {
	return func(o *options) {
		if maxEntries <= 0 {
			maxEntries = 1000
		}
		o.cache = newCache(enabled, ttl, ttl/2, maxEntries) // negative entries expire faster
	}
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
