package tombstone

import (
	"sync"

	"emperror.dev/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rs/zerolog"

	"github.com/absfs/proxyfs/store"
)

// keyPrefix namespaces tombstone keys so the database can hold other records later.
const keyPrefix = "t:"

func key(name string) []byte {
	return []byte(keyPrefix + store.Clean(name))
}

// Badger is a Set persisted in a badger database, so that a directory overlay can
// be reopened later with the same deletions in effect.
type Badger struct {
	db *badger.DB

	mu    sync.Mutex
	count int
}

var _ Set = (*Badger)(nil)

// OpenBadger opens or creates the set stored in dir.
func OpenBadger(dir string, logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger.With().Str("component", "tombstones").Logger()}).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, store.ConstructionFailed("tombstone database "+dir, err)
	}

	b := &Badger{db: db}
	if err := b.Range(func(string) bool { b.count++; return true }); err != nil {
		db.Close()
		return nil, store.ConstructionFailed("tombstone database "+dir, err)
	}
	return b, nil
}

// OpenBadgerInMemory returns a badger-backed set that keeps nothing on disk.
func OpenBadgerInMemory(logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{logger}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, store.ConstructionFailed("in-memory tombstone database", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Add(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := false
	err := b.db.Update(func(txn *badger.Txn) error {
		k := key(name)
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		added = true
		return txn.Set(k, nil)
	})
	if err != nil {
		return errors.Wrapf(err, "cannot tombstone %s", name)
	}
	if added {
		b.count++
	}
	return nil
}

func (b *Badger) Has(name string) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "cannot look up tombstone %s", name)
	}
	return found, nil
}

func (b *Badger) Range(fn func(name string) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			if !fn(string(k[len(keyPrefix):])) {
				break
			}
		}
		return nil
	})
}

func (b *Badger) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Badger) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// badgerLogger routes badger's own logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
