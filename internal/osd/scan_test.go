package osd

import (
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/sigreer/lustrezfs/internal/zfs"
)

type storeOnly struct {
	zfs.Store
}

func TestBackend_ScanTargets(t *testing.T) {
	target := func(svname string) []zfs.Property {
		return []zfs.Property{
			{Name: PropVersion, Value: "1"},
			{Name: PropSVName, Value: svname},
		}
	}

	store := zfs.NewFakeStore()
	store.AddDataset("mdtpool", zfs.TypeFilesystem)
	store.AddDataset("mdtpool/mdt0", zfs.TypeFilesystem, target("fs-MDT0000")...)
	store.AddDataset("ostpool", zfs.TypeFilesystem)
	store.AddDataset("ostpool/ost0", zfs.TypeFilesystem, target("fs-OST0000")...)
	store.AddDataset("ostpool/ost0@snap", zfs.TypeSnapshot, target("fs-OST0000")...)
	store.AddDataset("ostpool/scratch", zfs.TypeFilesystem,
		zfs.Property{Name: "com.example:owner", Value: "ops"})
	b, _ := testBackend(t, store)

	for name, tc := range map[string]struct {
		root string
		exp  []string
	}{
		"all pools":   {exp: []string{"mdtpool/mdt0", "ostpool/ost0"}},
		"one pool":    {root: "ostpool", exp: []string{"ostpool/ost0"}},
		"no targets":  {root: "ostpool/scratch"},
		"single root": {root: "mdtpool/mdt0", exp: []string{"mdtpool/mdt0"}},
	} {
		t.Run(name, func(t *testing.T) {
			targets, err := b.ScanTargets(tc.root)
			if err != nil {
				t.Fatal(err)
			}

			var got []string
			for _, tgt := range targets {
				got = append(got, tgt.Dataset)
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Fatalf("unexpected targets (-want, +got):\n%s", diff)
			}
			if store.OpenHandles() != 0 {
				t.Fatalf("leaked %d dataset handles", store.OpenHandles())
			}
		})
	}

	targets, _ := b.ScanTargets("ostpool/ost0")
	if len(targets) != 1 || targets[0].LDD.SVName != "fs-OST0000" {
		t.Fatalf("expected the stored record, got %+v", targets)
	}
}

func TestBackend_ScanTargets_NoLister(t *testing.T) {
	b, _ := testBackend(t, storeOnly{zfs.NewFakeStore()})
	if _, err := b.ScanTargets(""); !errors.Is(err, syscall.ENOSYS) {
		t.Fatalf("expected ENOSYS, got %v", err)
	}
}
