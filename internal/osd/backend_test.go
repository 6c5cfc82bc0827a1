package osd

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sigreer/lustrezfs/internal/zfs"
)

// testBackend returns a ready backend over store, a log observer, and a
// directory holding a zero spl_hostid and no /etc/hostid.
func testBackend(t *testing.T, store zfs.Store) (*Backend, *observer.ObservedLogs) {
	t.Helper()

	dir := t.TempDir()
	splPath := filepath.Join(dir, "spl_hostid")
	if err := os.WriteFile(splPath, []byte("0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zap.DebugLevel)
	b := NewBackend(store, Options{
		Log:        zap.New(core).Sugar(),
		SPLPath:    splPath,
		HostIDPath: filepath.Join(dir, "hostid"),
		RunCmd: func(cmd string) (string, error) {
			t.Fatalf("unexpected command %q", cmd)
			return "", nil
		},
	})
	return b, logs
}

func setProbe(t *testing.T, fn func() error) {
	t.Helper()
	orig := probeZFS
	probeZFS = fn
	t.Cleanup(func() { probeZFS = orig })
}

func TestInit(t *testing.T) {
	for name, tc := range map[string]struct {
		probeErrs   []error
		modprobeErr error
		expModprobe bool
		expErr      error
	}{
		"ready first time": {
			probeErrs: []error{nil},
		},
		"modprobe fixes it": {
			probeErrs:   []error{os.ErrNotExist, nil},
			expModprobe: true,
		},
		"modprobe fails": {
			probeErrs:   []error{os.ErrNotExist},
			modprobeErr: errors.New("exit status 1"),
			expModprobe: true,
			expErr:      syscall.EINVAL,
		},
		"still missing after modprobe": {
			probeErrs:   []error{os.ErrNotExist, os.ErrNotExist},
			expModprobe: true,
			expErr:      syscall.EINVAL,
		},
	} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			setProbe(t, func() error {
				err := tc.probeErrs[calls]
				calls++
				return err
			})

			var ranModprobe bool
			b, err := Init(Options{
				RunCmd: func(cmd string) (string, error) {
					if cmd != modprobeCmd {
						t.Fatalf("unexpected command %q", cmd)
					}
					ranModprobe = true
					return "", tc.modprobeErr
				},
			})

			if ranModprobe != tc.expModprobe {
				t.Fatalf("modprobe run = %v, want %v", ranModprobe, tc.expModprobe)
			}
			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Fatalf("expected %v, got %v", tc.expErr, err)
				}
				if b != nil {
					t.Fatal("expected nil backend on failure")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !b.Ready() {
				t.Fatal("expected ready backend")
			}

			b.Fini()
			if b.Ready() {
				t.Fatal("expected backend to be released")
			}
		})
	}
}

func TestBackend_NotReady(t *testing.T) {
	store := zfs.NewFakeStore()
	store.AddDataset("tank/ost0", zfs.TypeFilesystem)

	var fatalCalls int
	b := NewBackend(store, Options{Fatal: func() { fatalCalls++ }})
	b.Fini()

	mop := &MkfsOpts{Device: "tank/ost0"}
	for name, fn := range map[string]func() error{
		"WriteLDD":   func() error { return b.WriteLDD(mop) },
		"ReadLDD":    func() error { return b.ReadLDD("tank/ost0", &mop.LDD) },
		"Label":      func() error { return b.Label("tank/ost0", "fs-OST0000") },
		"Tune":       func() error { return b.Tune("tank/ost0") },
		"Prepare":    func() error { return b.Prepare(mop) },
		"MakeLustre": func() error { return b.MakeLustre(mop) },
	} {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, syscall.EINVAL) {
				t.Fatalf("expected EINVAL, got %v", err)
			}
		})
	}

	if fatalCalls != 6 {
		t.Fatalf("expected fatal hook on each failure, got %d calls", fatalCalls)
	}
	if store.Opens != 0 {
		t.Fatalf("expected no dataset to be opened, got %d", store.Opens)
	}

	if _, ok := b.IsLustre("tank/ost0"); ok {
		t.Fatal("IsLustre must be false when not ready")
	}

	var nilBackend *Backend
	if err := nilBackend.Tune("tank/ost0"); !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("expected EINVAL from nil backend, got %v", err)
	}
}

func TestErrno(t *testing.T) {
	for name, tc := range map[string]struct {
		err error
		exp syscall.Errno
	}{
		"nil":       {nil, 0},
		"plain":     {syscall.ENOENT, syscall.ENOENT},
		"wrapped":   {errors.Wrap(syscall.E2BIG, "params"), syscall.E2BIG},
		"path":      {&os.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}, syscall.EACCES},
		"uncoded":   {errors.New("boom"), syscall.EIO},
		"run error": {&zfs.RunCmdError{Cmd: "false", Err: errors.New("exit")}, syscall.EIO},
	} {
		t.Run(name, func(t *testing.T) {
			if got := Errno(tc.err); got != tc.exp {
				t.Fatalf("Errno() = %d, want %d", got, tc.exp)
			}
		})
	}
}
