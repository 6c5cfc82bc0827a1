package zfs

import (
	"strings"
)

// MaxNameLen is the longest dataset name the kernel accepts, excluding NUL
const MaxNameLen = 255

func validNameChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == ':' || c == ' '
}

func validComponent(comp string) bool {
	if comp == "" || comp == "." || comp == ".." {
		return false
	}
	for _, c := range comp {
		if !validNameChar(c) {
			return false
		}
	}
	return true
}

// PoolNameValid checks the naming rules for the pool component
func PoolNameValid(pool string) bool {
	if !validComponent(pool) {
		return false
	}
	first := pool[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return false
	}
	if pool == "mirror" || pool == "spare" || pool == "log" ||
		strings.HasPrefix(pool, "raidz") || strings.HasPrefix(pool, "draid") {
		return false
	}
	if len(pool) > 1 && pool[0] == 'c' && pool[1] >= '0' && pool[1] <= '9' {
		return false
	}
	return true
}

// NameValid reports whether name is a syntactically valid dataset name for
// any of the given types.
func NameValid(name string, types DatasetType) bool {
	if name == "" || len(name) > MaxNameLen {
		return false
	}

	path, snap, isSnap := strings.Cut(name, "@")
	if isSnap {
		if types&TypeSnapshot == 0 || !validComponent(snap) {
			return false
		}
	} else if types&(TypeFilesystem|TypeVolume) == 0 {
		return false
	}

	comps := strings.Split(path, "/")
	if !PoolNameValid(comps[0]) {
		return false
	}
	for _, comp := range comps[1:] {
		if !validComponent(comp) {
			return false
		}
	}
	return true
}
