package osd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

// MkfsFlag modifies provisioning behavior
type MkfsFlag uint32

const (
	// FlagForceFormat destroys an existing dataset before creating it
	FlagForceFormat MkfsFlag = 1 << iota
	// FlagNoHostIDCheck turns a missing host id into a warning
	FlagNoHostIDCheck
	// FlagDryRun logs commands instead of running them
	FlagDryRun
)

// MkfsOpts describes a target to provision
type MkfsOpts struct {
	Device      string
	LDD         ldd.DiskData
	PoolVdevs   []string
	DeviceKB    uint64
	MkfsOptions string
	Flags       MkfsFlag
}

// maxFileKB keeps DeviceKB*1024 within a signed 64-bit file offset
const maxFileKB = uint64(1) << (63 - 10)

// Prepare validates the dataset name before anything is created.
func (b *Backend) Prepare(mop *MkfsOpts) error {
	if err := b.checkReady(); err != nil {
		return err
	}

	if !zfs.NameValid(mop.Device, zfs.TypeFilesystem) {
		b.fatalf("Invalid filesystem name %s", mop.Device)
		return errors.Wrapf(syscall.EINVAL, "invalid filesystem name %s", mop.Device)
	}

	if !strings.Contains(mop.Device, "/") {
		b.fatalf("Missing pool in filesystem name %s", mop.Device)
		return errors.Wrapf(syscall.EINVAL, "missing pool in filesystem name %s", mop.Device)
	}

	return nil
}

// MkfsOptions returns the extra "-o" argument for zfs create, if any
func MkfsOptions(mop *MkfsOpts) string {
	if mop.MkfsOptions == "" {
		return ""
	}
	return " -o " + mop.MkfsOptions
}

// PoolCreateCmd returns the zpool create command line for pool and vdevs
func PoolCreateCmd(pool string, vdevs []string) string {
	cmd := "zpool create -f -O canmount=off " + pool
	for _, vdev := range vdevs {
		cmd += " " + vdev
	}
	return cmd
}

// DatasetCreateCmd returns the zfs create command line for the target
func DatasetCreateCmd(mop *MkfsOpts) string {
	return fmt.Sprintf("zfs create -o canmount=off -o xattr=sa%s %s",
		MkfsOptions(mop), mop.Device)
}

// MakeLustre creates the pool (when vdevs are given and it does not exist
// yet) and the dataset for a new target. Creation goes through the zpool
// and zfs commands so their own error reporting reaches the operator.
func (b *Backend) MakeLustre(mop *MkfsOpts) error {
	if err := b.checkReady(); err != nil {
		return err
	}

	if mop.LDD.Flags&ldd.FlagNeedIndex != 0 {
		b.fatalf("The target index must be specified with --index")
		return errors.Wrap(syscall.EINVAL, "no automatic index with zfs backend")
	}

	if err := b.checkHostID(mop); err != nil {
		return err
	}

	slash := strings.Index(mop.Device, "/")
	if slash < 0 {
		b.fatalf("Missing pool in filesystem name %s", mop.Device)
		return errors.Wrapf(syscall.EINVAL, "missing pool in filesystem name %s", mop.Device)
	}
	pool := mop.Device[:slash]

	if mop.Flags&FlagForceFormat != 0 {
		if err := b.destroyExisting(mop); err != nil {
			return err
		}
	}

	if len(mop.PoolVdevs) > 0 && !b.store.PoolExists(pool) {
		for _, vdev := range mop.PoolVdevs {
			if err := b.createVdev(mop, vdev); err != nil {
				return err
			}
		}

		cmd := PoolCreateCmd(pool, mop.PoolVdevs)
		if err := b.run(mop, cmd); err != nil {
			b.fatalf("Unable to create pool %s (%d)", pool, Errno(err))
			return errors.Wrapf(err, "create pool %s", pool)
		}
	}

	cmd := DatasetCreateCmd(mop)
	if err := b.run(mop, cmd); err != nil {
		b.fatalf("Unable to create filesystem %s (%d)", mop.Device, Errno(err))
		return errors.Wrapf(err, "create filesystem %s", mop.Device)
	}

	return nil
}

func (b *Backend) destroyExisting(mop *MkfsOpts) error {
	ds, err := b.store.Open(mop.Device, zfs.TypeFilesystem)
	if err != nil {
		return nil
	}
	defer ds.Close()

	if mop.Flags&FlagDryRun != 0 {
		b.log.Infof("dry run: would destroy %s", mop.Device)
		return nil
	}

	if err := ds.Destroy(); err != nil {
		b.log.Errorf("Failed destroy zfs dataset %s (%d)", mop.Device, Errno(err))
		return errors.Wrapf(err, "destroy %s", mop.Device)
	}
	return nil
}

func (b *Backend) run(mop *MkfsOpts, cmd string) error {
	b.log.Debugf("mkfs_cmd = %s", cmd)
	if mop.Flags&FlagDryRun != 0 {
		b.log.Infof("dry run: %s", cmd)
		return nil
	}
	_, err := b.runCmd(cmd)
	return err
}

// createVdev makes sure an absolute-path vdev exists, creating a sparse
// backing file of mop.DeviceKB when it does not. Layout keywords and
// relative names are left for zpool create to resolve.
func (b *Backend) createVdev(mop *MkfsOpts, vdev string) error {
	if zfs.IsReservedVdev(vdev) || !filepath.IsAbs(vdev) {
		return nil
	}

	_, err := os.Stat(vdev)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		b.fatalf("Unable to access required vdev for pool %s (%d)", vdev, Errno(err))
		return errors.Wrapf(err, "access vdev %s", vdev)
	}

	if mop.DeviceKB == 0 {
		b.fatalf("Unable to create vdev due to missing --device-size=#N(KB) parameter")
		return errors.Wrapf(syscall.EINVAL, "vdev %s: missing device size", vdev)
	}

	if mop.Flags&FlagDryRun != 0 {
		b.log.Infof("dry run: would create %s file vdev %s",
			humanize.IBytes(mop.DeviceKB*1024), vdev)
		return nil
	}

	b.log.Debugf("Creating %s file vdev %s", humanize.IBytes(mop.DeviceKB*1024), vdev)
	if err := fileCreate(vdev, mop.DeviceKB); err != nil {
		b.fatalf("Unable to create vdev %s (%d)", vdev, Errno(err))
		return err
	}
	return nil
}

// fileCreate creates a sparse file of sizeKB kibibytes
func fileCreate(path string, sizeKB uint64) error {
	if sizeKB >= maxFileKB {
		return errors.Wrapf(syscall.EFBIG, "%s: size %d KB too large", path, sizeKB)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	if err := f.Truncate(int64(sizeKB) * 1024); err != nil {
		f.Close()
		return errors.Wrapf(err, "truncate %s", path)
	}

	return errors.Wrapf(f.Close(), "close %s", path)
}
