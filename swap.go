package proxyfs

import (
	"io/fs"

	"emperror.dev/errors"
	"github.com/absfs/absfs"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

// FallbackThreshold is used when system memory cannot be sampled.
const FallbackThreshold uint64 = 512 << 20

// Swap is a Writer whose overlay starts in memory and migrates, once, to a
// secondary store when it grows past a threshold.
//
// Every essential operation first measures the active overlay. When it holds more
// than the threshold, its content is copied to the secondary store, the secondary
// becomes the overlay and the retired store is closed. There is no way back.
type Swap struct {
	ops.Ops

	w         *Writer
	secondary store.FS
	threshold uint64
	swapped   bool
	checking  bool
	log       zerolog.Logger
}

var _ store.FS = (*Swap)(nil)

// NewSwap returns a Swap over backing. A nil backing behaves as an empty store.
func NewSwap(backing store.FS, opts ...Option) (*Swap, error) {
	o := newOptions(opts)

	if o.secondary == nil {
		secondary, err := store.NewTemp("", "proxyfs-swap-")
		if err != nil {
			return nil, err
		}
		o.secondary = secondary
	}
	if o.threshold == 0 {
		o.threshold = defaultThreshold(o.logger)
	}

	w, err := newWriter(backing, o)
	if err != nil {
		o.secondary.Close()
		return nil, err
	}

	s := &Swap{
		w:         w,
		secondary: o.secondary,
		threshold: o.threshold,
		log:       o.logger,
	}
	s.Ops = ops.BindBuffer(s, o.copyBufferSize)
	return s, nil
}

// defaultThreshold is half of the total system memory.
func defaultThreshold(log zerolog.Logger) uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		log.Warn().Err(err).
			Str("threshold", humanize.IBytes(FallbackThreshold)).
			Msg("cannot sample system memory, using fallback swap threshold")
		return FallbackThreshold
	}
	return vm.Total / 2
}

func (s *Swap) String() string {
	return s.w.String()
}

// Writer returns the overlay filesystem driven by the Swap.
func (s *Swap) Writer() *Writer {
	return s.w
}

// Active returns the overlay currently receiving writes.
func (s *Swap) Active() store.FS {
	return s.w.Overlay()
}

// Swapped reports whether the migration already happened.
func (s *Swap) Swapped() bool {
	return s.swapped
}

// Threshold returns the overlay size that triggers the migration.
func (s *Swap) Threshold() uint64 {
	return s.threshold
}

// Usage returns the number of bytes held by the active overlay.
func (s *Swap) Usage() (int64, error) {
	return ops.Usage(s.w.Overlay())
}

// check migrates the overlay if it grew past the threshold. The measurement walks
// the active store directly and never comes back through the Swap; the checking
// flag stops any nested call from measuring again.
func (s *Swap) check() error {
	if s.checking || s.swapped || s.w.Closed() {
		return nil
	}
	s.checking = true
	defer func() { s.checking = false }()

	usage, err := s.Usage()
	if err != nil {
		return errors.Wrap(err, "cannot measure overlay")
	}
	s.log.Debug().
		Str("usage", humanize.IBytes(uint64(usage))).
		Str("threshold", humanize.IBytes(s.threshold)).
		Msg("checked overlay size")

	if uint64(usage) > s.threshold {
		return s.Swap()
	}
	return nil
}

// Swap copies the active overlay into the secondary store, installs the secondary
// as the overlay and closes the retired store. Calling it again does nothing.
func (s *Swap) Swap() error {
	if s.swapped {
		return nil
	}
	if s.w.Closed() {
		return store.PathErr("swap", store.Root, store.ErrClosed)
	}

	retired := s.w.Overlay()
	usage, err := ops.Usage(retired)
	if err != nil {
		s.log.Warn().Err(err).Msg("cannot measure retired overlay")
	}
	s.log.Info().
		Str("from", storeName(retired)).
		Str("to", storeName(s.secondary)).
		Str("size", humanize.IBytes(uint64(usage))).
		Msg("swapping overlay")

	if err := ops.CopyFS(retired, s.secondary, s.w.copyBufferSize); err != nil {
		return errors.Wrap(err, "cannot swap overlay")
	}

	s.w.setOverlay(s.secondary)
	s.swapped = true

	if err := retired.Close(); err != nil {
		s.log.Warn().Err(err).Msg("cannot close retired overlay")
	}
	s.log.Info().Str("overlay", storeName(s.secondary)).Msg("overlay swapped")
	return nil
}

func storeName(fsys store.FS) string {
	if s, ok := fsys.(interface{ String() string }); ok {
		return s.String()
	}
	return "store"
}

func (s *Swap) Exists(name string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.w.Exists(name)
}

func (s *Swap) Stat(name string) (fs.FileInfo, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.w.Stat(name)
}

func (s *Swap) ReadDir(name string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.w.ReadDir(name)
}

func (s *Swap) OpenFile(name string, flag int, perm fs.FileMode) (store.File, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.w.OpenFile(name, flag, perm)
}

func (s *Swap) MakeDir(name string, recreate bool) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.w.MakeDir(name, recreate)
}

func (s *Swap) Remove(name string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.w.Remove(name)
}

func (s *Swap) RemoveDir(name string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.w.RemoveDir(name)
}

func (s *Swap) SetInfo(name string, attrs store.Attrs) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.w.SetInfo(name, attrs)
}

func (s *Swap) Meta() store.Meta {
	return s.w.Meta()
}

// Close closes the Writer and the secondary store if it never became the overlay.
func (s *Swap) Close() error {
	if s.w.Closed() {
		return nil
	}
	err := s.w.Close()
	if !s.swapped {
		err = errors.Append(err, s.secondary.Close())
	}
	return err
}

// FileSystem returns an absfs.FileSystem view of the merged tree that goes through
// the Swap, so the view also triggers migration.
func (s *Swap) FileSystem() absfs.FileSystem {
	return absfs.ExtendFiler(&absFSAdapter{fsys: s, bufSize: s.w.copyBufferSize})
}
