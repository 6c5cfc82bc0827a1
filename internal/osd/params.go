package osd

import (
	"strings"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

// setPropParams maps each "<key>=<value>" token in params to a
// "lustre:<key>" property. Tokens without a key or a value are skipped.
func (b *Backend) setPropParams(ds zfs.Dataset, params string) error {
	for _, token := range strings.Fields(params) {
		key, value, _ := strings.Cut(token, "=")
		if key == "" || value == "" {
			b.log.Debugf("  skipping malformed parameter %q", token)
			continue
		}

		prop := PropPrefix + key
		b.log.Debugf("  %s=%s", prop, value)
		if err := ds.SetProp(prop, value); err != nil {
			return err
		}
	}
	return nil
}

// getPropParams appends every namespaced property without a dedicated field
// to d.Params as "<key>=<value>". Order follows the store's enumeration.
func (b *Backend) getPropParams(ds zfs.Dataset, d *ldd.DiskData) error {
	props, err := ds.UserProps()
	if err != nil {
		return err
	}

	for _, p := range props {
		if !strings.HasPrefix(p.Name, PropPrefix) || isBridgeProp(p.Name) {
			continue
		}
		if err := d.AddParam(strings.TrimPrefix(p.Name, PropPrefix)+"=", p.Value); err != nil {
			return err
		}
	}
	return nil
}
