package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sigreer/lustrezfs/internal/config"
	"github.com/sigreer/lustrezfs/internal/db"
	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/osd"
	"github.com/sigreer/lustrezfs/internal/version"
)

// mkfsArgs holds the target description flags shared by mkfs and write
type mkfsArgs struct {
	fsname      string
	index       uint32
	mgs         bool
	mdt         bool
	ost         bool
	svname      string
	params      []string
	mgsnodes    []string
	failnodes   []string
	mkfsOptions string
	mountOpts   string
	userdata    string
	deviceSize  string
	reformat    bool
	noHostID    bool
	dryRun      bool
}

var mkfsFlags mkfsArgs

var mkfsCmd = &cobra.Command{
	Use:   "mkfs <pool/dataset> [vdev...]",
	Short: "Create a dataset and format it as a Lustre target",
	Long: `Create the ZFS dataset for a new Lustre target and store its
configuration as dataset properties.

If vdevs are given and the pool does not exist yet, the pool is created
from them first. Absolute vdev paths that do not exist are created as
sparse files of --device-size.

Examples:
  lustrezfs mkfs --ost --fsname lustre --index 3 --mgsnode 10.0.0.1@tcp \
      ost3pool/ost3 mirror /dev/sdb /dev/sdc
  lustrezfs mkfs --mgs --mdt --fsname lustre --index 0 mdtpool/mdt0`,
	Args: invalidArgs(cobra.MinimumNArgs(1)),
	RunE: runMkfs,
}

func init() {
	f := mkfsCmd.Flags()
	f.StringVar(&mkfsFlags.fsname, "fsname", "lustre", "Lustre filesystem name")
	f.Uint32Var(&mkfsFlags.index, "index", 0, "target index")
	f.BoolVar(&mkfsFlags.mgs, "mgs", false, "target is a management server")
	f.BoolVar(&mkfsFlags.mdt, "mdt", false, "target is a metadata target")
	f.BoolVar(&mkfsFlags.ost, "ost", false, "target is an object storage target")
	f.StringVar(&mkfsFlags.svname, "svname", "", "server name (default <fsname>-<type><index>)")
	f.StringArrayVar(&mkfsFlags.params, "param", nil, "key=value parameter (repeatable)")
	f.StringArrayVar(&mkfsFlags.mgsnodes, "mgsnode", nil, "NID of the management server (repeatable)")
	f.StringArrayVar(&mkfsFlags.failnodes, "failnode", nil, "NID of a failover partner (repeatable)")
	f.StringVar(&mkfsFlags.mkfsOptions, "mkfsoptions", "", "extra property for zfs create, e.g. recordsize=1M")
	f.StringVar(&mkfsFlags.mountOpts, "mountfsoptions", "", "persistent mount options")
	f.StringVar(&mkfsFlags.userdata, "userdata", "", "free-form user data")
	f.StringVar(&mkfsFlags.deviceSize, "device-size", "", "size of file vdevs to create, e.g. 10GiB (bare numbers are KB)")
	f.BoolVar(&mkfsFlags.reformat, "reformat", false, "destroy an existing dataset first")
	f.BoolVar(&mkfsFlags.noHostID, "no-hostid-check", false, "only warn when failover is configured without a host id")
	f.BoolVar(&mkfsFlags.dryRun, "dry-run", false, "print the commands instead of running them")
}

// buildMkfsOpts turns command line arguments into a provisioning request
func buildMkfsOpts(a *mkfsArgs, indexSet bool, args []string, cfg *config.Config) (*osd.MkfsOpts, error) {
	mop := &osd.MkfsOpts{
		Device:      args[0],
		PoolVdevs:   args[1:],
		MkfsOptions: a.mkfsOptions,
	}

	d := &mop.LDD
	d.ConfigVersion = version.LDDConfigVersion
	d.Flags = ldd.FlagVirgin
	if a.mgs {
		d.Flags |= ldd.FlagSvTypeMGS
	}
	if a.mdt {
		d.Flags |= ldd.FlagSvTypeMDT
	}
	if a.ost {
		d.Flags |= ldd.FlagSvTypeOST
	}
	if d.Flags&ldd.FlagSvTypeMask == 0 {
		return nil, errors.Wrap(syscall.EINVAL, "one of --mgs, --mdt or --ost is required")
	}
	if a.mdt && a.ost {
		return nil, errors.Wrap(syscall.EINVAL, "--mdt and --ost are mutually exclusive")
	}

	pureMGS := d.Flags&ldd.FlagSvTypeMask == ldd.FlagSvTypeMGS
	if !pureMGS {
		if a.fsname == "" {
			return nil, errors.Wrap(syscall.EINVAL, "--fsname is required")
		}
		d.FSName = a.fsname
	}
	d.Index = a.index
	if !indexSet && !pureMGS {
		d.Flags |= ldd.FlagNeedIndex
	}

	d.SVName = a.svname
	if d.SVName == "" {
		d.SVName = d.DefaultSVName()
	}
	d.UserData = a.userdata
	d.MountOpts = a.mountOpts

	if err := addParams(d, a); err != nil {
		return nil, err
	}

	size := a.deviceSize
	if size == "" {
		size = cfg.Mkfs.DeviceSize
	}
	kb, err := config.ParseSizeKB(size)
	if err != nil {
		return nil, errors.Wrap(syscall.EINVAL, err.Error())
	}
	mop.DeviceKB = kb

	if a.reformat {
		mop.Flags |= osd.FlagForceFormat
	}
	if a.noHostID || cfg.HostID.SkipCheck {
		mop.Flags |= osd.FlagNoHostIDCheck
	}
	if a.dryRun {
		mop.Flags |= osd.FlagDryRun
	}

	return mop, nil
}

// addParams appends the node and key=value parameters to d.Params
func addParams(d *ldd.DiskData, a *mkfsArgs) error {
	for _, nid := range a.mgsnodes {
		if err := d.AddParam(ldd.ParamMGSNode, nid); err != nil {
			return err
		}
	}
	for _, nid := range a.failnodes {
		if err := d.AddParam(ldd.ParamFailNode, nid); err != nil {
			return err
		}
	}
	for _, p := range a.params {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || key == "" || value == "" || strings.ContainsAny(p, " \t") {
			return errors.Wrapf(syscall.EINVAL, "invalid parameter %q, expected key=value", p)
		}
		if err := d.AddParam(key+"=", value); err != nil {
			return err
		}
	}
	return nil
}

func runMkfs(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	mop, err := buildMkfsOpts(&mkfsFlags, cmd.Flags().Changed("index"), args, e.cfg)
	if err != nil {
		return err
	}

	b, err := e.backend()
	if err != nil {
		return err
	}
	defer b.Fini()

	err = mkfs(b, mop)
	e.record(mop.Device, db.EventMkfs, mop, err, map[string]interface{}{
		"vdevs":       mop.PoolVdevs,
		"mkfsoptions": mop.MkfsOptions,
	})
	if err != nil {
		return err
	}

	if mop.Flags&osd.FlagDryRun != 0 {
		fmt.Println("Dry run, nothing was changed. Would write:")
	} else {
		fmt.Printf("Formatted %s", mop.Device)
		if mop.DeviceKB > 0 {
			fmt.Printf(" (file vdevs %s)", humanize.IBytes(mop.DeviceKB*1024))
		}
		fmt.Println()
	}
	printLDD(mop.Device, &mop.LDD)
	return nil
}

// mkfs runs the provisioning sequence: validate, create, write properties
func mkfs(b *osd.Backend, mop *osd.MkfsOpts) error {
	if err := b.Prepare(mop); err != nil {
		return err
	}
	if err := b.MakeLustre(mop); err != nil {
		return err
	}
	if mop.Flags&osd.FlagDryRun != 0 {
		return nil
	}
	return b.WriteLDD(mop)
}
