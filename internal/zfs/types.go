package zfs

import (
	"strings"
)

// DatasetType is a bitmask of dataset kinds accepted by Open
type DatasetType int

const (
	TypeFilesystem DatasetType = 1 << iota
	TypeSnapshot
	TypeVolume
)

func (t DatasetType) String() string {
	var names []string
	if t&TypeFilesystem != 0 {
		names = append(names, "filesystem")
	}
	if t&TypeSnapshot != 0 {
		names = append(names, "snapshot")
	}
	if t&TypeVolume != 0 {
		names = append(names, "volume")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// parseDatasetType maps the type column of `zfs list` to a DatasetType
func parseDatasetType(s string) DatasetType {
	switch strings.TrimSpace(s) {
	case "filesystem":
		return TypeFilesystem
	case "snapshot":
		return TypeSnapshot
	case "volume":
		return TypeVolume
	}
	return 0
}

// Property is a single user property as reported by the store
type Property struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// Store opens datasets and answers pool-level questions. Implementations
// are not required to be safe for concurrent use.
type Store interface {
	// Open returns a handle to the named dataset if it exists and its type
	// is one of types. A missing dataset yields an error wrapping ENOENT.
	Open(name string, types DatasetType) (Dataset, error)
	// PoolExists reports whether the pool is currently imported.
	PoolExists(pool string) bool
}

// Lister enumerates pools and filesystems
type Lister interface {
	ListPools() ([]string, error)
	// ListFilesystems returns root and every filesystem below it, or all
	// filesystems when root is empty.
	ListFilesystems(root string) ([]string, error)
}

// Dataset is an open handle to a single dataset or snapshot. Callers must
// Close every handle they open.
type Dataset interface {
	Name() string
	Type() DatasetType
	// UserProps returns all user properties in store enumeration order.
	UserProps() ([]Property, error)
	// UserProp returns the value of one user property, or an error
	// wrapping ENOENT if it is not set.
	UserProp(name string) (string, error)
	SetProp(name, value string) error
	Destroy() error
	Close() error
}

// IsUserProp reports whether name is a user property (contains a colon)
func IsUserProp(name string) bool {
	return strings.Contains(name, ":")
}

// PoolName returns the pool component of a dataset name
func PoolName(dataset string) string {
	if i := strings.IndexAny(dataset, "/@"); i >= 0 {
		return dataset[:i]
	}
	return dataset
}
