package zfs

import (
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// FakeDataset is the in-memory state behind a FakeStore dataset
type FakeDataset struct {
	Type  DatasetType
	Props []Property
	// SetErr fails SetProp for the named property
	SetErr map[string]error
	// PropsErr fails UserProps and UserProp
	PropsErr   error
	DestroyErr error
}

// FakeStore is an in-memory Store for unit tests. Properties keep their
// insertion order.
type FakeStore struct {
	Datasets  map[string]*FakeDataset
	Pools     map[string]bool
	OpenErr   map[string]error
	Destroyed []string
	Opens     int
	open      int
}

var (
	_ Store  = (*FakeStore)(nil)
	_ Lister = (*FakeStore)(nil)
)

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Datasets: map[string]*FakeDataset{},
		Pools:    map[string]bool{},
		OpenErr:  map[string]error{},
	}
}

// AddDataset creates (or replaces) a dataset and marks its pool as
// imported.
func (f *FakeStore) AddDataset(name string, t DatasetType, props ...Property) *FakeDataset {
	ds := &FakeDataset{Type: t, Props: props, SetErr: map[string]error{}}
	f.Datasets[name] = ds
	f.Pools[PoolName(name)] = true
	return ds
}

// Prop returns a property value straight from the backing state
func (f *FakeStore) Prop(dataset, name string) (string, bool) {
	ds, ok := f.Datasets[dataset]
	if !ok {
		return "", false
	}
	for _, p := range ds.Props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// OpenHandles returns the number of handles opened and not yet closed
func (f *FakeStore) OpenHandles() int {
	return f.open
}

func (f *FakeStore) Open(name string, types DatasetType) (Dataset, error) {
	if err := f.OpenErr[name]; err != nil {
		return nil, err
	}
	ds, ok := f.Datasets[name]
	if !ok {
		return nil, errors.Wrapf(syscall.ENOENT, "dataset %s", name)
	}
	if ds.Type&types == 0 {
		return nil, errors.Wrapf(syscall.ENOENT, "dataset %s is a %s, not a %s",
			name, ds.Type, types)
	}
	f.open++
	f.Opens++
	return &fakeHandle{store: f, name: name, ds: ds}, nil
}

func (f *FakeStore) PoolExists(pool string) bool {
	return f.Pools[pool]
}

func (f *FakeStore) ListPools() ([]string, error) {
	var pools []string
	for pool, ok := range f.Pools {
		if ok {
			pools = append(pools, pool)
		}
	}
	sort.Strings(pools)
	return pools, nil
}

func (f *FakeStore) ListFilesystems(root string) ([]string, error) {
	var names []string
	for name, ds := range f.Datasets {
		if ds.Type != TypeFilesystem {
			continue
		}
		if root == "" || name == root || strings.HasPrefix(name, root+"/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

type fakeHandle struct {
	store  *FakeStore
	name   string
	ds     *FakeDataset
	closed bool
}

func (h *fakeHandle) Name() string      { return h.name }
func (h *fakeHandle) Type() DatasetType { return h.ds.Type }

func (h *fakeHandle) UserProps() ([]Property, error) {
	if h.ds.PropsErr != nil {
		return nil, h.ds.PropsErr
	}
	out := make([]Property, len(h.ds.Props))
	copy(out, h.ds.Props)
	return out, nil
}

func (h *fakeHandle) UserProp(name string) (string, error) {
	if h.ds.PropsErr != nil {
		return "", h.ds.PropsErr
	}
	for _, p := range h.ds.Props {
		if p.Name == name {
			return p.Value, nil
		}
	}
	return "", errors.Wrapf(syscall.ENOENT, "%s: property %s", h.name, name)
}

func (h *fakeHandle) SetProp(name, value string) error {
	if err := h.ds.SetErr[name]; err != nil {
		return err
	}
	for i := range h.ds.Props {
		if h.ds.Props[i].Name == name {
			h.ds.Props[i].Value = value
			return nil
		}
	}
	h.ds.Props = append(h.ds.Props, Property{Name: name, Value: value, Source: "local"})
	return nil
}

func (h *fakeHandle) Destroy() error {
	if h.ds.DestroyErr != nil {
		return h.ds.DestroyErr
	}
	delete(h.store.Datasets, h.name)
	h.store.Destroyed = append(h.store.Destroyed, h.name)
	return nil
}

func (h *fakeHandle) Close() error {
	if !h.closed {
		h.closed = true
		h.store.open--
	}
	return nil
}
