package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sigreer/lustrezfs/internal/config"
	"github.com/sigreer/lustrezfs/internal/db"
	"github.com/sigreer/lustrezfs/internal/logger"
	"github.com/sigreer/lustrezfs/internal/osd"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lustrezfs",
	Short: "Lustre target configuration on ZFS datasets",
	Long: `lustrezfs stores and reads the configuration of Lustre targets
(filesystem name, server name, index, flags, mount options and
parameters) as "lustre:" user properties of ZFS datasets, and
provisions the pools and datasets that back new targets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// env is the per-invocation state shared by the subcommands
type env struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	opID string
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, errors.Wrap(syscall.EINVAL, err.Error())
	}
	if verbose {
		cfg.Log.Verbose = true
	}

	zl, err := logger.New(cfg.Log.Mode, cfg.Log.Verbose)
	if err != nil {
		return nil, errors.Wrap(syscall.EINVAL, err.Error())
	}

	log := zl.Sugar()
	if cfg.Path != "" {
		log.Debugf("config loaded from %s", cfg.Path)
	}
	return &env{cfg: cfg, log: log, opID: db.NewOperationID()}, nil
}

func (e *env) close() {
	e.log.Sync()
}

// backend brings up the ZFS backend, loading the module if needed
func (e *env) backend() (*osd.Backend, error) {
	return osd.Init(osd.Options{
		Log:        e.log,
		SPLPath:    e.cfg.HostID.SPLPath,
		HostIDPath: e.cfg.HostID.HostIDPath,
	})
}

// history opens the history database, or returns nil when it is disabled
// or unavailable. History is best effort and never fails a command.
func (e *env) history() *db.DB {
	if !e.cfg.HistoryEnabled() {
		return nil
	}
	h, err := db.New(e.cfg.History.Path)
	if err != nil {
		e.log.Debugf("history disabled: %s", err)
		return nil
	}
	return h
}

// record stores the outcome of an operation in the history database
func (e *env) record(dataset, eventType string, mop *osd.MkfsOpts, opErr error, details map[string]interface{}) {
	h := e.history()
	if h == nil {
		return
	}
	defer h.Close()

	status := db.StatusOK
	switch {
	case opErr != nil:
		status = db.StatusFailed
		if details == nil {
			details = map[string]interface{}{}
		}
		details["error"] = opErr.Error()
	case mop != nil && mop.Flags&osd.FlagDryRun != 0:
		status = db.StatusDryRun
	}

	if _, err := h.RecordEvent(e.opID, dataset, eventType, status, int(osd.Errno(opErr)), details); err != nil {
		e.log.Warnf("history: %s", err)
	}

	if opErr == nil && mop != nil && status == db.StatusOK {
		if err := h.RecordTarget(db.TargetFromLDD(dataset, &mop.LDD)); err != nil {
			e.log.Warnf("history: %s", err)
		}
	}
}

// invalidArgs tags positional argument errors with EINVAL
func invalidArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return errors.Wrap(syscall.EINVAL, err.Error())
		}
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/lustrezfs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Wrap(syscall.EINVAL, err.Error())
	})

	rootCmd.AddCommand(mkfsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotLustre) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status: the POSIX code it
// carries, or 1 for a negative detect result.
func exitCode(err error) int {
	if errors.Is(err, errNotLustre) {
		return 1
	}
	return int(osd.Errno(err))
}
