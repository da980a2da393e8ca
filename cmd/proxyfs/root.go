package main

import (
	"fmt"
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"github.com/absfs/proxyfs/internal/config"
)

// app carries the state shared by every subcommand.
type app struct {
	configFile string
	session    *config.Session
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "proxyfs",
		Short: "proxyfs edits a read-only tree through a copy-on-write overlay",
		Long: `proxyfs makes a read-only directory or zip archive look writable.
Writes land in an overlay; removals are recorded as tombstones. With a
directory overlay and a state directory, changes survive between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (YAML)")
	flags.String("backing", "", "read-only backing directory or .zip archive")
	flags.String("overlay-dir", "", "directory receiving writes (implies a dir overlay)")
	flags.String("state", "", "directory persisting tombstones")
	flags.String("log-level", "", "log level [debug, info, warn, error]")

	rootCmd.AddCommand(
		a.lsCmd(),
		a.catCmd(),
		a.writeCmd(),
		a.appendCmd(),
		a.mkdirCmd(),
		a.rmCmd(),
		a.rmdirCmd(),
		a.statCmd(),
		a.usageCmd(),
		a.statusCmd(),
		a.exportCmd(),
	)
	return rootCmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.session, err = config.Open(cfg, logger)
	return errors.Wrap(err, "cannot open overlay")
}

func (a *app) close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	return err
}

// run executes the command line args. The overlay is closed even when the
// command fails.
func run(args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.Execute()
	return errors.Append(err, a.close())
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "proxyfs:", err)
		os.Exit(1)
	}
}
