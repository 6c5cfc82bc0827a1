package osd

import (
	"strings"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

func TestSetPropParams(t *testing.T) {
	for name, tc := range map[string]struct {
		params   string
		setErr   map[string]error
		expProps []zfs.Property
		expErr   string
	}{
		"empty": {},
		"two options": {
			params: "opt1=a opt2=b",
			expProps: []zfs.Property{
				{Name: "lustre:opt1", Value: "a", Source: "local"},
				{Name: "lustre:opt2", Value: "b", Source: "local"},
			},
		},
		"malformed tokens skipped": {
			params: "novalue= nokey =orphan opt1=a",
			expProps: []zfs.Property{
				{Name: "lustre:opt1", Value: "a", Source: "local"},
			},
		},
		"value keeps later equals": {
			params: "  failover.node=10.0.0.2@tcp\tsys.at_max=a=b  ",
			expProps: []zfs.Property{
				{Name: "lustre:failover.node", Value: "10.0.0.2@tcp", Source: "local"},
				{Name: "lustre:sys.at_max", Value: "a=b", Source: "local"},
			},
		},
		"first failure aborts": {
			params: "opt1=a opt2=b opt3=c",
			setErr: map[string]error{"lustre:opt2": errors.New("mock set")},
			expProps: []zfs.Property{
				{Name: "lustre:opt1", Value: "a", Source: "local"},
			},
			expErr: "mock set",
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := zfs.NewFakeStore()
			fake := store.AddDataset("tank/ost0", zfs.TypeFilesystem)
			for k, v := range tc.setErr {
				fake.SetErr[k] = v
			}
			b, _ := testBackend(t, store)

			ds, _ := store.Open("tank/ost0", zfs.TypeFilesystem)
			defer ds.Close()

			err := b.setPropParams(ds, tc.params)
			if tc.expErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expErr) {
					t.Fatalf("expected error %q, got %v", tc.expErr, err)
				}
			} else if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tc.expProps, fake.Props); diff != "" {
				t.Fatalf("unexpected properties (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestGetPropParams(t *testing.T) {
	for name, tc := range map[string]struct {
		props     []zfs.Property
		propsErr  error
		start     string
		expTokens []string
		expErr    error
	}{
		"no properties": {
			expTokens: []string{},
		},
		"skips bridged and foreign": {
			props: []zfs.Property{
				{Name: PropVersion, Value: "1"},
				{Name: "lustre:opt1", Value: "a"},
				{Name: "com.example:owner", Value: "ops"},
				{Name: PropSVName, Value: "fs-OST0000"},
				{Name: "lustre:opt2", Value: "b"},
			},
			expTokens: []string{"opt1=a", "opt2=b"},
		},
		"appends to existing": {
			start: "mgsnode=10.0.0.1@tcp",
			props: []zfs.Property{
				{Name: "lustre:opt1", Value: "a"},
			},
			expTokens: []string{"mgsnode=10.0.0.1@tcp", "opt1=a"},
		},
		"enumeration error": {
			propsErr: errors.New("mock props"),
			expErr:   errors.New("mock props"),
		},
		"capacity exceeded": {
			props: []zfs.Property{
				{Name: "lustre:big", Value: strings.Repeat("v", ldd.ParamsCap)},
			},
			expErr: syscall.E2BIG,
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := zfs.NewFakeStore()
			fake := store.AddDataset("tank/ost0", zfs.TypeFilesystem, tc.props...)
			fake.PropsErr = tc.propsErr
			b, _ := testBackend(t, store)

			ds, _ := store.Open("tank/ost0", zfs.TypeFilesystem)
			defer ds.Close()

			d := ldd.DiskData{Params: tc.start}
			err := b.getPropParams(ds, &d)
			if tc.expErr != nil {
				if err == nil || (!errors.Is(err, tc.expErr) && err.Error() != tc.expErr.Error()) {
					t.Fatalf("expected %v, got %v", tc.expErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tc.expTokens, d.Tokens()); diff != "" {
				t.Fatalf("unexpected params (-want, +got):\n%s", diff)
			}
		})
	}
}
