package osd

import (
	"syscall"

	"github.com/pkg/errors"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

// Target is a filesystem found to hold a Lustre target
type Target struct {
	Dataset string       `json:"dataset"`
	LDD     ldd.DiskData `json:"ldd"`
}

// ScanTargets reads every filesystem below root (all pools when root is
// empty) and returns those that hold a Lustre target. Filesystems that
// cannot be read are skipped.
func (b *Backend) ScanTargets(root string) ([]Target, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}

	lister, ok := b.store.(zfs.Lister)
	if !ok {
		return nil, errors.Wrap(syscall.ENOSYS, "store cannot enumerate datasets")
	}

	roots := []string{root}
	if root == "" {
		pools, err := lister.ListPools()
		if err != nil {
			return nil, errors.Wrap(err, "list pools")
		}
		roots = pools
	}

	var targets []Target
	for _, r := range roots {
		names, err := lister.ListFilesystems(r)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", r)
		}

		for _, name := range names {
			if _, ok := b.IsLustre(name); !ok {
				continue
			}
			t := Target{Dataset: name}
			if err := b.ReadLDD(name, &t.LDD); err != nil {
				b.log.Debugf("%s: %s", name, err)
				continue
			}
			targets = append(targets, t)
		}
	}

	return targets, nil
}
