package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-onewire/logger"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	cfg config
	out io.Writer
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: loadConfig(), out: os.Stdout, log: logger.GetLogger()}

	rootCmd := &cobra.Command{
		Use:   "owmem",
		Short: "owmem inspects and modifies 1-Wire memory banks",
		Long: `owmem works on a simulated 1-Wire bus whose device images are kept in
a LevelDB store. Devices are added with "owmem sim add" and then read,
written, locked and password protected through the same bank engine a
real adapter would use.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLevel(a.cfg.logLevel)
			if err != nil {
				return err
			}
			a.out = cmd.OutOrStdout()
			a.log = logger.NewSlogWriter(cmd.ErrOrStderr(), level, false, a.cfg.console)

			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfg.storePath, "store", a.cfg.storePath, "path of the device image store ("+envStore+")")
	flags.StringVar(&a.cfg.logLevel, "log-level", a.cfg.logLevel, "log level: debug, info, warn or error ("+envLogLevel+")")
	flags.BoolVar(&a.cfg.verify, "verify", a.cfg.verify, "read back and compare every write ("+envVerify+")")

	rootCmd.AddCommand(
		newSimCmd(a),
		newListCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newLockCmd(a),
		newDumpCmd(a),
		newPasswordCmd(a),
	)

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
