package ldd

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// Field capacities in bytes, including the terminating NUL of the on-disk
// layout. A stored value must be strictly shorter than its capacity.
const (
	FSNameCap    = 64
	SVNameCap    = 64
	UUIDCap      = 40
	UserDataCap  = 1024 - 200
	MountOptsCap = 4096
	ParamsCap    = 4096
)

// Well-known parameter keys
const (
	ParamFailNode      = "failover.node="
	ParamFailNodeAlias = "failnode="
	ParamMGSNode       = "mgsnode="
)

// Flag bits stored in the flags property
const (
	FlagSvTypeMDT   uint32 = 0x0001
	FlagSvTypeOST   uint32 = 0x0002
	FlagSvTypeMGS   uint32 = 0x0004
	FlagNeedIndex   uint32 = 0x0010
	FlagVirgin      uint32 = 0x0020
	FlagUpdate      uint32 = 0x0040
	FlagRewriteLDD  uint32 = 0x0080
	FlagWriteconf   uint32 = 0x0100
	FlagParam       uint32 = 0x0400
	FlagNoPrimNode  uint32 = 0x1000
	FlagIRCapable   uint32 = 0x2000
	FlagError       uint32 = 0x4000
	FlagParam2      uint32 = 0x8000
	FlagNoLocalLogs uint32 = 0x10000

	FlagSvTypeMask = FlagSvTypeMDT | FlagSvTypeOST | FlagSvTypeMGS
)

var flagNames = []struct {
	flag uint32
	name string
}{
	{FlagSvTypeMDT, "MDT"},
	{FlagSvTypeOST, "OST"},
	{FlagSvTypeMGS, "MGS"},
	{FlagNeedIndex, "needs_index"},
	{FlagVirgin, "first_time"},
	{FlagUpdate, "update"},
	{FlagRewriteLDD, "rewrite_ldd"},
	{FlagWriteconf, "writeconf"},
	{FlagNoPrimNode, "no_primnode"},
}

// FlagNames lists the names of the well-known bits set in flags
func FlagNames(flags uint32) []string {
	var names []string
	for _, f := range flagNames {
		if flags&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// MountType identifies the backend a record was read from
type MountType uint32

const (
	MountTypeExt3 MountType = iota
	MountTypeLdiskfs
	MountTypeSmfs
	MountTypeReiserfs
	MountTypeLdiskfs2
	MountTypeZFS
)

var mountTypeNames = []string{"ext3", "ldiskfs", "smfs", "reiserfs", "ldiskfs2", "zfs"}

func (mt MountType) String() string {
	if int(mt) < len(mountTypeNames) {
		return mountTypeNames[mt]
	}
	return "unknown"
}

// DiskData is the persistent configuration of a single Lustre target.
type DiskData struct {
	ConfigVersion uint32    `json:"config_version"`
	Flags         uint32    `json:"flags"`
	Index         uint32    `json:"index"`
	MountType     MountType `json:"mount_type"`
	FSName        string    `json:"fsname,omitempty"`
	SVName        string    `json:"svname,omitempty"`
	UUID          string    `json:"uuid,omitempty"`
	UserData      string    `json:"userdata,omitempty"`
	MountOpts     string    `json:"mount_opts,omitempty"`
	Params        string    `json:"params,omitempty"`
}

// CheckCap returns an E2BIG error when value does not fit in a field of
// capacity bytes.
func CheckCap(field, value string, capacity int) error {
	if len(value) >= capacity {
		return errors.Wrapf(syscall.E2BIG, "%s is too long (%d >= %d bytes)",
			field, len(value), capacity)
	}
	return nil
}

// ValidateStrings checks every string field against its capacity.
func (d *DiskData) ValidateStrings() error {
	for _, f := range []struct {
		name  string
		value string
		cap   int
	}{
		{"fsname", d.FSName, FSNameCap},
		{"svname", d.SVName, SVNameCap},
		{"uuid", d.UUID, UUIDCap},
		{"userdata", d.UserData, UserDataCap},
		{"mountopts", d.MountOpts, MountOptsCap},
		{"params", d.Params, ParamsCap},
	} {
		if err := CheckCap(f.name, f.value, f.cap); err != nil {
			return err
		}
	}
	return nil
}

// AddParam appends " <key><value>" to the parameter blob. key normally
// carries its trailing '='.
func (d *DiskData) AddParam(key, value string) error {
	if len(d.Params)+1+len(key)+len(value) >= ParamsCap {
		return errors.Wrapf(syscall.E2BIG, "params are too long: %s %s%s",
			d.Params, key, value)
	}
	d.Params += " " + key + value
	return nil
}

// HasParam reports whether key occurs anywhere in the parameter blob.
func (d *DiskData) HasParam(key string) bool {
	return strings.Contains(d.Params, key)
}

// Tokens splits the parameter blob into its whitespace-separated tokens.
func (d *DiskData) Tokens() []string {
	return strings.Fields(d.Params)
}

// ServerType returns a short label for the target type bits in Flags.
func (d *DiskData) ServerType() string {
	var types []string
	if d.Flags&FlagSvTypeMGS != 0 {
		types = append(types, "MGS")
	}
	if d.Flags&FlagSvTypeMDT != 0 {
		types = append(types, "MDT")
	}
	if d.Flags&FlagSvTypeOST != 0 {
		types = append(types, "OST")
	}
	if len(types) == 0 {
		return "-"
	}
	return strings.Join(types, "+")
}

// DefaultSVName derives the server name from the filesystem name, target
// type and index, e.g. "lustre-OST0003". A pure MGS is always "MGS".
func (d *DiskData) DefaultSVName() string {
	switch {
	case d.Flags&FlagSvTypeMask == FlagSvTypeMGS:
		return "MGS"
	case d.Flags&FlagSvTypeOST != 0:
		return fmt.Sprintf("%s-OST%04x", d.FSName, d.Index)
	default:
		return fmt.Sprintf("%s-MDT%04x", d.FSName, d.Index)
	}
}
