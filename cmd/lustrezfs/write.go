package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sigreer/lustrezfs/internal/db"
	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/osd"
)

var writeFlags mkfsArgs

var writeCmd = &cobra.Command{
	Use:   "write <dataset>",
	Short: "Update the Lustre configuration of an existing target",
	Long: `Read the configuration stored on a target dataset, merge the given
parameters and mount options into it, and write it back. A parameter
whose key is already present replaces the stored value.`,
	Args: invalidArgs(cobra.ExactArgs(1)),
	RunE: runWrite,
}

var labelCmd = &cobra.Command{
	Use:   "label <dataset> <svname>",
	Short: "Change the server name of a target",
	Args:  invalidArgs(cobra.ExactArgs(2)),
	RunE:  runLabel,
}

func init() {
	f := writeCmd.Flags()
	f.StringArrayVar(&writeFlags.params, "param", nil, "key=value parameter (repeatable)")
	f.StringArrayVar(&writeFlags.mgsnodes, "mgsnode", nil, "NID of the management server (repeatable)")
	f.StringArrayVar(&writeFlags.failnodes, "failnode", nil, "NID of a failover partner (repeatable)")
	f.StringVar(&writeFlags.mountOpts, "mountfsoptions", "", "replace the persistent mount options")
	f.StringVar(&writeFlags.userdata, "userdata", "", "replace the user data")
	f.Bool("writeconf", false, "request a configuration log rewrite on next mount")
	f.BoolVar(&writeFlags.noHostID, "no-hostid-check", false, "only warn when failover is configured without a host id")
	f.BoolVar(&writeFlags.dryRun, "dry-run", false, "print the result instead of writing it")
}

// mergeParams folds the parameters of a into d.Params. A key already in
// d.Params has its value replaced in place; new keys are appended. A token
// identical to one already stored is dropped.
func mergeParams(d *ldd.DiskData, a *mkfsArgs) error {
	var update ldd.DiskData
	if err := addParams(&update, a); err != nil {
		return err
	}

	tokens := d.Tokens()
	index := make(map[string]int, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for i, tok := range tokens {
		seen[tok] = true
		if key, _, ok := strings.Cut(tok, "="); ok {
			index[key] = i
		}
	}

	for _, tok := range update.Tokens() {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		key, _, _ := strings.Cut(tok, "=")
		// repeated nodes accumulate
		if i, ok := index[key]; ok && key+"=" != ldd.ParamMGSNode && key+"=" != ldd.ParamFailNode {
			tokens[i] = tok
			continue
		}
		index[key] = len(tokens)
		tokens = append(tokens, tok)
	}

	d.Params = ""
	for _, tok := range tokens {
		key, value, _ := strings.Cut(tok, "=")
		if err := d.AddParam(key+"=", value); err != nil {
			return err
		}
	}
	return nil
}

// updateTarget reads the configuration of the target mop.Device, lets edit
// change it, and writes it back unless mop carries FlagDryRun. Datasets
// without Lustre metadata are refused so nothing is stamped onto them.
func updateTarget(b *osd.Backend, mop *osd.MkfsOpts, edit func(*ldd.DiskData) error) error {
	if _, ok := b.IsLustre(mop.Device); !ok {
		return errors.Wrapf(syscall.EINVAL, "%s: not a Lustre target", mop.Device)
	}
	if err := b.ReadLDD(mop.Device, &mop.LDD); err != nil {
		return err
	}
	if err := edit(&mop.LDD); err != nil {
		return err
	}
	if mop.Flags&osd.FlagDryRun != 0 {
		return nil
	}
	return b.WriteLDD(mop)
}

func runWrite(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	b, err := e.backend()
	if err != nil {
		return err
	}
	defer b.Fini()

	mop := &osd.MkfsOpts{Device: args[0]}
	if writeFlags.noHostID || e.cfg.HostID.SkipCheck {
		mop.Flags |= osd.FlagNoHostIDCheck
	}
	if writeFlags.dryRun {
		mop.Flags |= osd.FlagDryRun
	}

	err = updateTarget(b, mop, func(d *ldd.DiskData) error {
		if err := mergeParams(d, &writeFlags); err != nil {
			return err
		}
		if cmd.Flags().Changed("mountfsoptions") {
			d.MountOpts = writeFlags.mountOpts
		}
		if cmd.Flags().Changed("userdata") {
			d.UserData = writeFlags.userdata
		}
		if wc, _ := cmd.Flags().GetBool("writeconf"); wc {
			d.Flags |= ldd.FlagWriteconf
		}
		return nil
	})
	e.record(mop.Device, db.EventWrite, mop, err, map[string]interface{}{"params": writeFlags.params})
	if err != nil {
		return err
	}

	if writeFlags.dryRun {
		fmt.Println("Dry run, nothing was changed. Would write:")
	} else {
		fmt.Printf("Updated %s\n", mop.Device)
	}
	printLDD(mop.Device, &mop.LDD)
	return nil
}

func runLabel(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	b, err := e.backend()
	if err != nil {
		return err
	}
	defer b.Fini()

	dataset, svname := args[0], args[1]
	err = b.Label(dataset, svname)
	e.record(dataset, db.EventLabel, nil, err, map[string]interface{}{"svname": svname})
	if err != nil {
		return err
	}

	fmt.Printf("%s: svname set to %s\n", dataset, svname)
	return nil
}
