// Package osd persists Lustre target configuration as ZFS dataset user
// properties and provisions the pools and datasets that back ZFS targets.
package osd

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sigreer/lustrezfs/internal/hostid"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

const (
	zfsControlDev = "/dev/zfs"
	modprobeCmd   = "/sbin/modprobe -q zfs"
)

// Options configure a Backend
type Options struct {
	Log        *zap.SugaredLogger
	SPLPath    string
	HostIDPath string
	// RunCmd executes provisioning command lines; defaults to zfs.Run
	RunCmd zfs.RunCmdFn
	// Fatal, if set, is called before every hard failure is logged
	Fatal func()
}

// Backend is the ZFS object storage backend. It must be created by Init
// or NewBackend and released with Fini. A Backend is not safe for
// concurrent use.
type Backend struct {
	log        *zap.SugaredLogger
	store      zfs.Store
	runCmd     zfs.RunCmdFn
	splPath    string
	hostIDPath string
	fatal      func()
	ready      bool
}

// probeZFS checks that the zfs tools and kernel module are usable
var probeZFS = func() error {
	if !zfs.Available() {
		return errors.New("zfs utilities not found in PATH")
	}
	if _, err := os.Stat(zfsControlDev); err != nil {
		return err
	}
	return nil
}

// NewBackend returns a ready Backend using store for all property access.
func NewBackend(store zfs.Store, opts Options) *Backend {
	b := &Backend{
		log:        opts.Log,
		store:      store,
		runCmd:     opts.RunCmd,
		splPath:    opts.SPLPath,
		hostIDPath: opts.HostIDPath,
		fatal:      opts.Fatal,
		ready:      true,
	}
	if b.log == nil {
		b.log = zap.NewNop().Sugar()
	}
	if b.runCmd == nil {
		b.runCmd = zfs.Run
	}
	return b
}

// Init sets up a Backend on top of the zfs command-line tools. If the zfs
// module is not loaded, one attempt is made to load it.
func Init(opts Options) (*Backend, error) {
	b := NewBackend(zfs.NewCLI(nil), opts)
	b.ready = false

	err := probeZFS()
	if err != nil {
		if _, err = b.runCmd(modprobeCmd); err == nil {
			err = probeZFS()
		}
	}
	if err != nil {
		b.log.Errorf("Failed to initialize ZFS library: %s", err)
		return nil, errors.Wrap(syscall.EINVAL, err.Error())
	}

	b.ready = true
	return b, nil
}

// Fini releases the backend. Every later operation fails.
func (b *Backend) Fini() {
	if b == nil {
		return
	}
	b.ready = false
}

// Ready reports whether the backend was initialized and not yet released
func (b *Backend) Ready() bool {
	return b != nil && b.ready
}

func (b *Backend) checkReady() error {
	if !b.Ready() {
		if b != nil {
			b.fatalf("Failed to initialize ZFS library. Are the ZFS packages and modules correctly installed?")
		}
		return errors.Wrap(syscall.EINVAL, "zfs backend not initialized")
	}
	return nil
}

func (b *Backend) fatalf(format string, args ...interface{}) {
	if b.fatal != nil {
		b.fatal()
	}
	b.log.Errorf(format, args...)
}

func (b *Backend) hostIDChecker(skip bool) *hostid.Checker {
	return &hostid.Checker{
		SPLPath:    b.splPath,
		HostIDPath: b.hostIDPath,
		Skip:       skip,
		Log:        b.log,
	}
}

// Errno extracts the POSIX error code carried by err. Failed external
// commands report their exit status; uncoded errors map to EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	var rce *zfs.RunCmdError
	if errors.As(err, &rce) && rce.ExitCode() > 0 {
		return syscall.Errno(rce.ExitCode())
	}

	return syscall.EIO
}
