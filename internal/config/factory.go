package config

import (
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/absfs/proxyfs"
	"github.com/absfs/proxyfs/store"
	"github.com/absfs/proxyfs/tombstone"
)

// DirOptions are the options of a directory overlay.
type DirOptions struct {
	Path string `mapstructure:"path"`
}

// TempOptions are the options of a temporary-directory overlay.
type TempOptions struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

// SwapOptions are the options of a swapping overlay. Threshold accepts a byte
// count or a human size such as "512MiB"; zero means half of the system memory.
type SwapOptions struct {
	Dir       string `mapstructure:"dir"`
	Prefix    string `mapstructure:"prefix"`
	Threshold uint64 `mapstructure:"threshold"`
}

// DecodeDirOptions decodes the overlay.dir section.
func DecodeDirOptions(options map[string]any) (DirOptions, error) {
	var opts DirOptions
	if err := decode(options, &opts); err != nil {
		return opts, errors.Wrap(err, "failed to decode dir overlay options")
	}
	return opts, nil
}

// DecodeTempOptions decodes the overlay.temp section.
func DecodeTempOptions(options map[string]any) (TempOptions, error) {
	opts := TempOptions{Prefix: "proxyfs-"}
	if err := decode(options, &opts); err != nil {
		return opts, errors.Wrap(err, "failed to decode temp overlay options")
	}
	return opts, nil
}

// DecodeSwapOptions decodes the overlay.swap section.
func DecodeSwapOptions(options map[string]any) (SwapOptions, error) {
	opts := SwapOptions{Prefix: "proxyfs-swap-"}
	if err := decode(options, &opts); err != nil {
		return opts, errors.Wrap(err, "failed to decode swap overlay options")
	}
	return opts, nil
}

func decode(options map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  bytesHook,
		ErrorUnused: true,
		Result:      result,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	return decoder.Decode(options)
}

// bytesHook turns human sizes into byte counts.
func bytesHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Uint64 {
		return data, nil
	}
	return humanize.ParseBytes(data.(string))
}

// NewLogger builds the logger described by cfg, writing to out.
func NewLogger(cfg LoggingConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// OpenBacking opens the backing store at path: a zip archive, or a directory
// wrapped read-only. An empty path returns nil.
func OpenBacking(path string) (store.FS, error) {
	if path == "" {
		return nil, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return store.NewZip(path)
	}
	dir, err := store.NewDir(path)
	if err != nil {
		return nil, err
	}
	return store.NewReadOnly(dir), nil
}

// Session is an open overlay built from a Config.
type Session struct {
	// FS is the merged view: the Swap when the overlay swaps, the Writer otherwise.
	FS     store.FS
	Writer *proxyfs.Writer
	Swap   *proxyfs.Swap
	Logger zerolog.Logger

	backing store.FS
	// closeBacking is set while the session, not the overlay, owns backing.
	closeBacking bool
}

// Open builds the stores described by cfg and the overlay over them.
func Open(cfg *Config, logger zerolog.Logger) (*Session, error) {
	backing, err := OpenBacking(cfg.Backing.Path)
	if err != nil {
		return nil, err
	}
	s := &Session{Logger: logger, backing: backing, closeBacking: backing != nil}

	opts, err := writerOptions(cfg, logger)
	if err != nil {
		s.closeStores()
		return nil, err
	}

	switch cfg.Overlay.Type {
	case OverlaySwap:
		swap, err := openSwap(cfg, backing, opts)
		if err != nil {
			s.closeStores()
			return nil, err
		}
		s.FS, s.Swap, s.Writer = swap, swap, swap.Writer()
	default:
		overlayOpts, err := overlayOptions(cfg, logger)
		if err != nil {
			s.closeStores()
			return nil, err
		}
		w, err := proxyfs.New(backing, append(opts, overlayOpts...)...)
		if err != nil {
			s.closeStores()
			return nil, err
		}
		s.FS, s.Writer = w, w
	}
	if cfg.Backing.Close {
		// the overlay closes the backing store itself
		s.closeBacking = false
	}

	logger.Debug().
		Str("backing", cfg.Backing.Path).
		Str("overlay", cfg.Overlay.Type).
		Msg("session opened")
	return s, nil
}

func writerOptions(cfg *Config, logger zerolog.Logger) ([]proxyfs.Option, error) {
	opts := []proxyfs.Option{
		proxyfs.WithLogger(logger),
		proxyfs.WithCloseBacking(cfg.Backing.Close),
	}

	size, err := humanize.ParseBytes(cfg.CopyBufferSize)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid copy_buffer_size %q", cfg.CopyBufferSize)
	}
	opts = append(opts, proxyfs.WithCopyBufferSize(int(size)))

	if cfg.Cache.Enabled {
		ttl, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid cache.ttl %q", cfg.Cache.TTL)
		}
		opts = append(opts, proxyfs.WithBackingCache(true, ttl, cfg.Cache.MaxEntries))
	}
	return opts, nil
}

// overlayOptions creates the overlay and tombstone set of a non-swapping session.
func overlayOptions(cfg *Config, logger zerolog.Logger) ([]proxyfs.Option, error) {
	switch cfg.Overlay.Type {
	case OverlayMemory:
		return nil, nil

	case OverlayTemp:
		opts, err := DecodeTempOptions(cfg.Overlay.Temp)
		if err != nil {
			return nil, err
		}
		overlay, err := store.NewTemp(opts.Dir, opts.Prefix)
		if err != nil {
			return nil, err
		}
		return []proxyfs.Option{proxyfs.WithOverlay(overlay)}, nil

	case OverlayDir:
		opts, err := DecodeDirOptions(cfg.Overlay.Dir)
		if err != nil {
			return nil, err
		}
		if err := afero.NewOsFs().MkdirAll(opts.Path, 0o755); err != nil {
			return nil, store.ConstructionFailed("overlay directory "+opts.Path, err)
		}
		overlay, err := store.NewDir(opts.Path)
		if err != nil {
			return nil, err
		}
		result := []proxyfs.Option{proxyfs.WithOverlay(overlay)}

		if cfg.Tombstones.Path != "" {
			set, err := tombstone.OpenBadger(cfg.Tombstones.Path, logger)
			if err != nil {
				overlay.Close()
				return nil, err
			}
			result = append(result, proxyfs.WithTombstones(set))
		}
		return result, nil
	}
	return nil, errors.Errorf("unknown overlay type %q", cfg.Overlay.Type)
}

func openSwap(cfg *Config, backing store.FS, opts []proxyfs.Option) (*proxyfs.Swap, error) {
	swapOpts, err := DecodeSwapOptions(cfg.Overlay.Swap)
	if err != nil {
		return nil, err
	}
	secondary, err := store.NewTemp(swapOpts.Dir, swapOpts.Prefix)
	if err != nil {
		return nil, err
	}
	opts = append(opts, proxyfs.WithSecondary(secondary))
	if swapOpts.Threshold > 0 {
		opts = append(opts, proxyfs.WithThreshold(swapOpts.Threshold))
	}
	return proxyfs.NewSwap(backing, opts...)
}

// Close closes the overlay and then the backing store, whichever of the two owns
// it.
func (s *Session) Close() error {
	var err error
	if s.Swap != nil {
		err = s.Swap.Close()
	} else if s.Writer != nil {
		err = s.Writer.Close()
	}
	return errors.Append(err, s.closeStores())
}

func (s *Session) closeStores() error {
	if !s.closeBacking {
		return nil
	}
	s.closeBacking = false
	return s.backing.Close()
}
