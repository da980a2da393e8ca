package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

func (a *app) usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "print the bytes held by the overlay and the merged tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overlay, err := ops.Usage(a.session.Writer.Overlay())
			if err != nil {
				return err
			}
			total, err := ops.Usage(a.session.FS)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "overlay: %s\n", humanize.IBytes(uint64(overlay)))
			fmt.Fprintf(out, "merged:  %s\n", humanize.IBytes(uint64(total)))
			return nil
		},
	}
}

// status is the YAML form of the overlay state.
type status struct {
	Backing    string   `yaml:"backing"`
	Overlay    string   `yaml:"overlay"`
	Swapped    *bool    `yaml:"swapped,omitempty"`
	Threshold  string   `yaml:"threshold,omitempty"`
	Tombstones []string `yaml:"tombstones"`
	Entries    []string `yaml:"overlay_entries"`
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print tombstoned paths and overlay entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := a.session.Writer
			changes, err := w.Changes()
			if err != nil {
				return err
			}

			st := status{
				Backing:    fmt.Sprint(w.Backing()),
				Overlay:    fmt.Sprint(w.Overlay()),
				Tombstones: changes,
			}
			if s := a.session.Swap; s != nil {
				swapped := s.Swapped()
				st.Swapped = &swapped
				st.Threshold = humanize.IBytes(s.Threshold())
			}

			err = ops.Walk(w.Overlay(), store.Root, func(name string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if name == store.Root {
					return nil
				}
				if info.IsDir() {
					name += "/"
				}
				st.Entries = append(st.Entries, name)
				return nil
			})
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(st)
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "export dest",
		Short:   "copy the merged tree into a directory",
		Example: "proxyfs --backing release.zip --overlay-dir ./changes export ./patched",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := afero.NewOsFs().MkdirAll(args[0], 0o755); err != nil {
				return err
			}
			dst, err := store.NewDir(args[0])
			if err != nil {
				return err
			}
			defer dst.Close()

			if err := ops.CopyFS(a.session.FS, dst, ops.DefaultBufferSize); err != nil {
				return err
			}
			a.session.Logger.Info().Str("dest", args[0]).Msg("merged tree exported")
			return nil
		},
	}
}
