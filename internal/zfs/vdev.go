package zfs

import "strings"

// Vdev keywords accepted by zpool create in place of a device
const (
	VdevDisk   = "disk"
	VdevFile   = "file"
	VdevMirror = "mirror"
	VdevRaidz  = "raidz"
	VdevSpare  = "spare"
	VdevLog    = "log"
	VdevCache  = "cache"
)

var reservedVdevPrefixes = []string{
	VdevDisk, VdevFile, VdevMirror, VdevRaidz, VdevSpare, VdevLog, VdevCache,
}

// IsReservedVdev reports whether a zpool create operand is a layout keyword
// rather than a device. Matching is by prefix so raidz2 and logs qualify.
func IsReservedVdev(name string) bool {
	for _, prefix := range reservedVdevPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
