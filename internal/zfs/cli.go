package zfs

import (
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// CLI implements Store on top of the zfs and zpool commands.
type CLI struct {
	exec ExecFn
}

var (
	_ Store  = (*CLI)(nil)
	_ Lister = (*CLI)(nil)
)

// NewCLI returns a Store that shells out through fn, or Exec if fn is nil.
func NewCLI(fn ExecFn) *CLI {
	if fn == nil {
		fn = Exec
	}
	return &CLI{exec: fn}
}

// Available reports whether the zfs and zpool binaries are on PATH
func Available() bool {
	if _, err := exec.LookPath("zfs"); err != nil {
		return false
	}
	if _, err := exec.LookPath("zpool"); err != nil {
		return false
	}
	return true
}

func cmdError(out []byte, err error, format string, args ...interface{}) error {
	msg := strings.TrimSpace(string(out))
	if strings.Contains(msg, "does not exist") || strings.Contains(msg, "no such") {
		return errors.Wrapf(syscall.ENOENT, format+": %s", append(args, msg)...)
	}
	if msg != "" {
		return errors.Wrapf(err, format+": %s", append(args, msg)...)
	}
	return errors.Wrapf(err, format, args...)
}

// Open implements Store.
func (c *CLI) Open(name string, types DatasetType) (Dataset, error) {
	out, err := c.exec("zfs", "list", "-H", "-p", "-o", "name,type", name)
	if err != nil {
		return nil, cmdError(out, err, "zfs list %s", name)
	}

	fields := strings.Split(strings.TrimSpace(string(out)), "\t")
	if len(fields) < 2 || fields[0] != name {
		return nil, errors.Wrapf(syscall.ENOENT, "dataset %s", name)
	}
	dsType := parseDatasetType(fields[1])
	if dsType&types == 0 {
		return nil, errors.Wrapf(syscall.ENOENT, "dataset %s is a %s, not a %s",
			name, fields[1], types)
	}

	ds := &cliDataset{cli: c, name: name, dsType: dsType}
	if err := ds.load(); err != nil {
		return nil, err
	}
	return ds, nil
}

// PoolExists implements Store.
func (c *CLI) PoolExists(pool string) bool {
	out, err := c.exec("zpool", "list", "-H", "-o", "name", pool)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == pool
}

type cliDataset struct {
	cli    *CLI
	name   string
	dsType DatasetType
	props  []Property
	closed bool
}

// load caches the dataset's user properties, the way a library handle is
// populated when it is opened.
func (d *cliDataset) load() error {
	out, err := d.cli.exec("zfs", "get", "-H", "-p", "-o", "property,value,source", "all", d.name)
	if err != nil {
		return cmdError(out, err, "zfs get all %s", d.name)
	}
	d.props = parseUserProps(string(out))
	return nil
}

// parseUserProps extracts user properties from `zfs get -H` output
func parseUserProps(output string) []Property {
	var props []Property
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 || !IsUserProp(fields[0]) {
			continue
		}
		p := Property{Name: fields[0], Value: fields[1]}
		if len(fields) == 3 {
			p.Source = fields[2]
		}
		props = append(props, p)
	}
	return props
}

func (d *cliDataset) Name() string      { return d.name }
func (d *cliDataset) Type() DatasetType { return d.dsType }

func (d *cliDataset) checkOpen() error {
	if d.closed {
		return errors.Errorf("dataset %s: handle is closed", d.name)
	}
	return nil
}

func (d *cliDataset) UserProps() ([]Property, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]Property, len(d.props))
	copy(out, d.props)
	return out, nil
}

func (d *cliDataset) UserProp(name string) (string, error) {
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	for _, p := range d.props {
		if p.Name == name {
			return p.Value, nil
		}
	}
	return "", errors.Wrapf(syscall.ENOENT, "%s: property %s", d.name, name)
}

func (d *cliDataset) SetProp(name, value string) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	out, err := d.cli.exec("zfs", "set", name+"="+value, d.name)
	if err != nil {
		return cmdError(out, err, "zfs set %s on %s", name, d.name)
	}

	for i := range d.props {
		if d.props[i].Name == name {
			d.props[i].Value = value
			d.props[i].Source = "local"
			return nil
		}
	}
	d.props = append(d.props, Property{Name: name, Value: value, Source: "local"})
	return nil
}

func (d *cliDataset) Destroy() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	out, err := d.cli.exec("zfs", "destroy", d.name)
	if err != nil {
		return cmdError(out, err, "zfs destroy %s", d.name)
	}
	return nil
}

func (d *cliDataset) Close() error {
	d.closed = true
	d.props = nil
	return nil
}
