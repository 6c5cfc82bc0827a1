package zfs

import (
	"strings"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

type mockExec struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (m *mockExec) exec(name string, args ...string) ([]byte, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	m.calls = append(m.calls, cmd)
	return []byte(m.outputs[cmd]), m.errs[cmd]
}

const (
	listCmd = "zfs list -H -p -o name,type tank/ost0"
	getCmd  = "zfs get -H -p -o property,value,source all tank/ost0"
)

func TestCLI_Open(t *testing.T) {
	getOut := "type\tfilesystem\t-\n" +
		"canmount\toff\tlocal\n" +
		"lustre:version\t1\tlocal\n" +
		"lustre:svname\tfs-OST0000\tlocal\n" +
		"com.example:owner\tops team\tinherited from tank\n"

	for name, tc := range map[string]struct {
		outputs  map[string]string
		errs     map[string]error
		types    DatasetType
		expProps []Property
		expErr   error
	}{
		"missing dataset": {
			outputs: map[string]string{
				listCmd: "cannot open 'tank/ost0': dataset does not exist\n",
			},
			errs:   map[string]error{listCmd: errors.New("exit status 1")},
			types:  TypeFilesystem,
			expErr: syscall.ENOENT,
		},
		"wrong type": {
			outputs: map[string]string{listCmd: "tank/ost0\tvolume\n"},
			types:   TypeFilesystem | TypeSnapshot,
			expErr:  syscall.ENOENT,
		},
		"get fails": {
			outputs: map[string]string{listCmd: "tank/ost0\tfilesystem\n"},
			errs:    map[string]error{getCmd: errors.New("exit status 2")},
			types:   TypeFilesystem,
			expErr:  errors.New("exit status 2"),
		},
		"success": {
			outputs: map[string]string{
				listCmd: "tank/ost0\tfilesystem\n",
				getCmd:  getOut,
			},
			types: TypeFilesystem,
			expProps: []Property{
				{Name: "lustre:version", Value: "1", Source: "local"},
				{Name: "lustre:svname", Value: "fs-OST0000", Source: "local"},
				{Name: "com.example:owner", Value: "ops team", Source: "inherited from tank"},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			m := &mockExec{outputs: tc.outputs, errs: tc.errs}
			cli := NewCLI(m.exec)

			ds, err := cli.Open("tank/ost0", tc.types)
			if tc.expErr != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", tc.expErr)
				}
				if errors.Is(tc.expErr, syscall.ENOENT) && !errors.Is(err, syscall.ENOENT) {
					t.Fatalf("expected ENOENT, got %v", err)
				}
				if !strings.Contains(err.Error(), tc.expErr.Error()) && !errors.Is(err, tc.expErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer ds.Close()

			props, err := ds.UserProps()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.expProps, props); diff != "" {
				t.Fatalf("unexpected props (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestCLI_SetProp(t *testing.T) {
	setCmd := "zfs set lustre:index=7 tank/ost0"
	m := &mockExec{
		outputs: map[string]string{
			listCmd: "tank/ost0\tfilesystem\n",
			getCmd:  "lustre:index\t3\tlocal\n",
		},
	}
	cli := NewCLI(m.exec)

	ds, err := cli.Open("tank/ost0", TypeFilesystem)
	if err != nil {
		t.Fatal(err)
	}

	if err := ds.SetProp("lustre:index", "7"); err != nil {
		t.Fatal(err)
	}
	if err := ds.SetProp("lustre:fsname", "fs"); err != nil {
		t.Fatal(err)
	}

	if m.calls[2] != setCmd {
		t.Fatalf("expected %q, got %q", setCmd, m.calls[2])
	}

	val, err := ds.UserProp("lustre:index")
	if err != nil || val != "7" {
		t.Fatalf("expected cached value 7, got %q (%v)", val, err)
	}
	if _, err := ds.UserProp("lustre:fsname"); err != nil {
		t.Fatalf("expected new property to be cached: %v", err)
	}
	if _, err := ds.UserProp("lustre:uuid"); !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("expected ENOENT, got %v", err)
	}

	ds.Close()
	if _, err := ds.UserProps(); err == nil {
		t.Fatal("expected error on closed handle")
	}
}

func TestCLI_PoolExists(t *testing.T) {
	m := &mockExec{
		outputs: map[string]string{
			"zpool list -H -o name tank": "tank\n",
		},
		errs: map[string]error{
			"zpool list -H -o name pool2": errors.New("exit status 1"),
		},
	}
	cli := NewCLI(m.exec)

	if !cli.PoolExists("tank") {
		t.Fatal("expected tank to exist")
	}
	if cli.PoolExists("pool2") {
		t.Fatal("expected pool2 to be missing")
	}
}

func TestCLI_ListFilesystems(t *testing.T) {
	m := &mockExec{
		outputs: map[string]string{
			"zfs list -H -o name -t filesystem -r tank": "tank\ntank/mdt0\ntank/ost0\n",
		},
	}
	cli := NewCLI(m.exec)

	got, err := cli.ListFilesystems("tank")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"tank", "tank/mdt0", "tank/ost0"}, got); diff != "" {
		t.Fatalf("unexpected list (-want, +got):\n%s", diff)
	}
}

func TestCLI_ListPools(t *testing.T) {
	m := &mockExec{
		outputs: map[string]string{
			"zpool list -H -o name": "ostpool\nmdtpool\n\n",
		},
	}
	got, err := NewCLI(m.exec).ListPools()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ostpool", "mdtpool"}, got); diff != "" {
		t.Fatalf("unexpected pools (-want, +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	out, err := Run("echo hello")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello\n" {
		t.Fatalf("unexpected output %q", out)
	}

	_, err = Run("echo oops >&2; exit 3")
	var rce *RunCmdError
	if !errors.As(err, &rce) {
		t.Fatalf("expected *RunCmdError, got %T", err)
	}
	if rce.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %d", rce.ExitCode())
	}
	if !strings.Contains(rce.Stderr, "oops") {
		t.Fatalf("expected stderr to be captured, got %q", rce.Stderr)
	}
}
