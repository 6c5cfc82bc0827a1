package osd

import (
	"syscall"

	"github.com/pkg/errors"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

// WriteLDD stores mop.LDD as properties of the mop.Device filesystem.
func (b *Backend) WriteLDD(mop *MkfsOpts) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	if err := mop.LDD.ValidateStrings(); err != nil {
		b.fatalf("Invalid target configuration for %s: %s", mop.Device, err)
		return err
	}

	ds, err := b.store.Open(mop.Device, zfs.TypeFilesystem)
	if err != nil {
		b.fatalf("Failed to open zfs dataset %s", mop.Device)
		return errors.Wrapf(syscall.ENOENT, "Failed to open zfs dataset %s: %s", mop.Device, err)
	}
	defer ds.Close()

	if err := b.checkHostID(mop); err != nil {
		return err
	}

	b.log.Debugf("Writing %s properties", mop.Device)

	if err := b.writeBridge(ds, &mop.LDD); err != nil {
		return errors.Wrapf(err, "write %s", mop.Device)
	}

	if err := b.setPropParams(ds, mop.LDD.Params); err != nil {
		return errors.Wrapf(err, "write %s params", mop.Device)
	}

	return nil
}

// ReadLDD loads the target configuration stored on a filesystem or
// snapshot. Missing properties are not an error; d keeps its existing
// values for them and new params are appended to d.Params.
func (b *Backend) ReadLDD(device string, d *ldd.DiskData) error {
	if err := b.checkReady(); err != nil {
		return err
	}

	ds, err := b.store.Open(device, zfs.TypeFilesystem)
	if err != nil {
		ds, err = b.store.Open(device, zfs.TypeSnapshot)
		if err != nil {
			return errors.Wrapf(err, "Failed to open zfs dataset %s", device)
		}
	}
	defer ds.Close()

	if err := b.readBridge(ds, d); err != nil {
		return errors.Wrapf(err, "read %s", device)
	}

	if err := b.getPropParams(ds, d); err != nil && !errors.Is(err, syscall.ENOENT) {
		return errors.Wrapf(err, "read %s params", device)
	}

	d.MountType = ldd.MountTypeZFS
	return nil
}

// IsLustre reports whether device holds a Lustre target and, if so, which
// backend it was read from.
func (b *Backend) IsLustre(device string) (ldd.MountType, bool) {
	if !b.Ready() {
		return 0, false
	}

	var tmp ldd.DiskData
	if err := b.ReadLDD(device, &tmp); err != nil {
		b.log.Debugf("%s: %s", device, err)
		return 0, false
	}
	if tmp.ConfigVersion > 0 && tmp.SVName != "" {
		return tmp.MountType, true
	}
	return 0, false
}

// Label renames the target stored on the source filesystem.
func (b *Backend) Label(source, svname string) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	if err := ldd.CheckCap("svname", svname, ldd.SVNameCap); err != nil {
		return err
	}

	ds, err := b.store.Open(source, zfs.TypeFilesystem)
	if err != nil {
		return errors.Wrapf(syscall.EINVAL, "Failed to open zfs dataset %s: %s", source, err)
	}
	defer ds.Close()

	return b.setPropStr(ds, PropSVName, svname)
}

// Tune applies mount-time tunables. ZFS targets have none.
func (b *Backend) Tune(device string) error {
	return b.checkReady()
}

// EnableQuota is not supported on ZFS; quota accounting is always on.
func (b *Backend) EnableQuota() error {
	b.log.Error("this option is not valid for zfs")
	return errors.Wrap(syscall.ENOSYS, "enable quota")
}

func (b *Backend) checkHostID(mop *MkfsOpts) error {
	err := b.hostIDChecker(mop.Flags&FlagNoHostIDCheck != 0).Check(mop.LDD.Params)
	if err != nil {
		b.fatalf("%s. See zgenhostid(8)", err)
	}
	return err
}
