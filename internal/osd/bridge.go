package osd

import (
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

// PropPrefix namespaces every property this package owns
const PropPrefix = "lustre:"

// Properties that map onto dedicated DiskData fields
const (
	PropVersion   = PropPrefix + "version"
	PropFlags     = PropPrefix + "flags"
	PropIndex     = PropPrefix + "index"
	PropFSName    = PropPrefix + "fsname"
	PropSVName    = PropPrefix + "svname"
	PropUUID      = PropPrefix + "uuid"
	PropUserData  = PropPrefix + "userdata"
	PropMountOpts = PropPrefix + "mountopts"
)

type propKind int

const (
	kindInt propKind = iota
	kindStr
)

// bridgeEntry ties a property to one DiskData field. Exactly one of
// intField and strField is set, according to kind.
type bridgeEntry struct {
	name     string
	kind     propKind
	intField func(*ldd.DiskData) *uint32
	strField func(*ldd.DiskData) *string
	capacity int
}

func intEntry(name string, field func(*ldd.DiskData) *uint32) bridgeEntry {
	return bridgeEntry{name: name, kind: kindInt, intField: field}
}

func strEntry(name string, capacity int, field func(*ldd.DiskData) *string) bridgeEntry {
	return bridgeEntry{name: name, kind: kindStr, strField: field, capacity: capacity}
}

// bridgeTable lists the properties with dedicated fields, in the order they
// are written and read. Everything else with PropPrefix lives in Params.
var bridgeTable = []bridgeEntry{
	intEntry(PropVersion, func(d *ldd.DiskData) *uint32 { return &d.ConfigVersion }),
	intEntry(PropFlags, func(d *ldd.DiskData) *uint32 { return &d.Flags }),
	intEntry(PropIndex, func(d *ldd.DiskData) *uint32 { return &d.Index }),
	strEntry(PropFSName, ldd.FSNameCap, func(d *ldd.DiskData) *string { return &d.FSName }),
	strEntry(PropSVName, ldd.SVNameCap, func(d *ldd.DiskData) *string { return &d.SVName }),
	strEntry(PropUUID, ldd.UUIDCap, func(d *ldd.DiskData) *string { return &d.UUID }),
	strEntry(PropUserData, ldd.UserDataCap, func(d *ldd.DiskData) *string { return &d.UserData }),
	strEntry(PropMountOpts, ldd.MountOptsCap, func(d *ldd.DiskData) *string { return &d.MountOpts }),
}

func isBridgeProp(name string) bool {
	for _, e := range bridgeTable {
		if e.name == name {
			return true
		}
	}
	return false
}

// bridgeProps returns the names of the properties with dedicated fields
func bridgeProps() []string {
	names := make([]string, len(bridgeTable))
	for i, e := range bridgeTable {
		names[i] = e.name
	}
	return names
}

func (b *Backend) writeEntry(ds zfs.Dataset, e bridgeEntry, d *ldd.DiskData) error {
	switch e.kind {
	case kindInt:
		return b.setPropInt(ds, e.name, *e.intField(d))
	default:
		return b.setPropStr(ds, e.name, *e.strField(d))
	}
}

func (b *Backend) readEntry(ds zfs.Dataset, e bridgeEntry, d *ldd.DiskData) error {
	switch e.kind {
	case kindInt:
		val, err := getPropInt(ds, e.name)
		if err != nil {
			return err
		}
		*e.intField(d) = val
	default:
		val, err := getPropStr(ds, e.name, e.capacity)
		if err != nil {
			return err
		}
		*e.strField(d) = val
	}
	return nil
}

// writeBridge stores every bridged field, stopping at the first failure.
func (b *Backend) writeBridge(ds zfs.Dataset, d *ldd.DiskData) error {
	for _, e := range bridgeTable {
		if err := b.writeEntry(ds, e, d); err != nil {
			return err
		}
	}
	return nil
}

// readBridge loads every bridged field. Properties that are not set leave
// the field untouched; older targets may predate some of them.
func (b *Backend) readBridge(ds zfs.Dataset, d *ldd.DiskData) error {
	for _, e := range bridgeTable {
		err := b.readEntry(ds, e, d)
		if errors.Is(err, syscall.ENOENT) {
			b.log.Debugf("  %s not set", e.name)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) setPropInt(ds zfs.Dataset, prop string, val uint32) error {
	str := strconv.FormatUint(uint64(val), 10)
	b.log.Debugf("  %s=%s", prop, str)
	return ds.SetProp(prop, str)
}

// setPropStr writes val unless it is empty, so optional fields never create
// empty properties.
func (b *Backend) setPropStr(ds zfs.Dataset, prop, val string) error {
	if val == "" {
		return nil
	}
	b.log.Debugf("  %s=%s", prop, val)
	return ds.SetProp(prop, val)
}

func getPropInt(ds zfs.Dataset, prop string) (uint32, error) {
	str, err := ds.UserProp(prop)
	if err != nil {
		return 0, err
	}

	val, err := strconv.ParseUint(strings.TrimSpace(str), 10, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, errors.Wrapf(syscall.ERANGE, "%s=%q", prop, str)
		}
		return 0, errors.Wrapf(syscall.EINVAL, "%s=%q is not a number", prop, str)
	}
	return uint32(val), nil
}

func getPropStr(ds zfs.Dataset, prop string, capacity int) (string, error) {
	str, err := ds.UserProp(prop)
	if err != nil {
		return "", err
	}
	if err := ldd.CheckCap(prop, str, capacity); err != nil {
		return "", err
	}
	return str, nil
}
