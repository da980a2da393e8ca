package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/absfs/proxyfs/ops"
	"github.com/absfs/proxyfs/store"
)

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls [path]",
		Short:   "list a directory of the merged tree",
		Example: "proxyfs --backing release.zip ls /etc",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := store.Root
			if len(args) > 0 {
				name = args[0]
			}
			names, err := a.session.FS.ReadDir(name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, n := range names {
				if ok, _ := ops.IsDir(a.session.FS, store.Join(name, n)); ok {
					n += "/"
				}
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat path",
		Short: "print a file of the merged tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.session.FS.OpenFile(args[0], os.O_RDONLY, 0)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(cmd.OutOrStdout(), f)
			return errors.Wrapf(err, "cannot read %s", args[0])
		},
	}
}

// writeFrom copies stdin into name, opened with flag.
func (a *app) writeFrom(cmd *cobra.Command, name string, flag int) error {
	f, err := a.session.FS.OpenFile(name, flag, store.DefaultFilePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, cmd.InOrStdin()); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot write %s", name)
	}
	return f.Close()
}

func (a *app) writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "write path",
		Short:   "replace a file with standard input",
		Example: "echo 'debug: true' | proxyfs --overlay-dir ./changes write /etc/app.yml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.writeFrom(cmd, args[0], os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		},
	}
}

func (a *app) appendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append path",
		Short: "append standard input to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.writeFrom(cmd, args[0], os.O_WRONLY|os.O_CREATE|os.O_APPEND)
		},
	}
}

func (a *app) mkdirCmd() *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir path",
		Short: "create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if parents {
				return ops.MakeDirs(a.session.FS, args[0], true)
			}
			return a.session.FS.MakeDir(args[0], false)
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents, no error if existing")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm path",
		Short: "remove a file, or a tree with -r",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recursive {
				return ops.RemoveTree(a.session.FS, args[0])
			}
			return a.session.FS.Remove(args[0])
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

func (a *app) rmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir path",
		Short: "remove an empty directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session.FS.RemoveDir(args[0])
		},
	}
}

// statInfo is the YAML form of a file's metadata.
type statInfo struct {
	Path    string    `yaml:"path"`
	Type    string    `yaml:"type"`
	Size    int64     `yaml:"size"`
	Mode    string    `yaml:"mode"`
	ModTime time.Time `yaml:"modified"`
	Overlay bool      `yaml:"in_overlay"`
}

func newStatInfo(name string, info fs.FileInfo, inOverlay bool) statInfo {
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return statInfo{
		Path:    store.Clean(name),
		Type:    kind,
		Size:    info.Size(),
		Mode:    info.Mode().Perm().String(),
		ModTime: info.ModTime(),
		Overlay: inOverlay,
	}
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat path",
		Short: "print the metadata of a path as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.session.FS.Stat(args[0])
			if err != nil {
				return err
			}
			inOverlay, err := a.session.Writer.Overlay().Exists(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(newStatInfo(args[0], info, inOverlay))
		},
	}
}
