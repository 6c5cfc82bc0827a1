package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sigreer/lustrezfs/internal/db"
	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/osd"
)

var errNotLustre = errors.New("not a Lustre target")

var showCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Print the Lustre configuration stored on a dataset",
	Long: `Read the lustre: properties of a filesystem (or snapshot) and print
the target configuration they describe.`,
	Args: invalidArgs(cobra.ExactArgs(1)),
	RunE: runShow,
}

var detectCmd = &cobra.Command{
	Use:   "detect <dataset>",
	Short: "Exit 0 if the dataset holds a Lustre target, 1 if not",
	Args:  invalidArgs(cobra.ExactArgs(1)),
	RunE:  runDetect,
}

func init() {
	showCmd.Flags().Bool("json", false, "Output as JSON")
	detectCmd.Flags().BoolP("quiet", "q", false, "no output, only the exit status")
}

func runShow(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

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

	var d ldd.DiskData
	err = b.ReadLDD(args[0], &d)
	e.record(args[0], db.EventRead, &osd.MkfsOpts{Device: args[0], LDD: d}, err, nil)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Dataset string `json:"dataset"`
			ldd.DiskData
			Tokens []string `json:"param_list"`
		}{args[0], d, d.Tokens()})
	}

	printLDD(args[0], &d)
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")

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

	mt, ok := b.IsLustre(args[0])
	e.record(args[0], db.EventDetect, nil, nil, map[string]interface{}{"lustre": ok})
	if !ok {
		if !quiet {
			fmt.Printf("%s: not a Lustre target\n", args[0])
		}
		return errNotLustre
	}
	if !quiet {
		fmt.Printf("%s: Lustre target (%s)\n", args[0], mt)
	}
	return nil
}

// printLDD writes a record in the layout used by the Lustre utilities
func printLDD(device string, d *ldd.DiskData) {
	fmt.Printf("Target:     %s\n", d.SVName)
	fmt.Printf("Dataset:    %s\n", device)
	fmt.Printf("Index:      %d\n", d.Index)
	fmt.Printf("Lustre FS:  %s\n", d.FSName)
	fmt.Printf("Mount type: %s\n", d.MountType)
	fmt.Printf("Flags:      %#x\n", d.Flags)
	fmt.Printf("              (%s)\n", strings.Join(ldd.FlagNames(d.Flags), " "))
	fmt.Printf("Persistent mount opts: %s\n", d.MountOpts)
	fmt.Printf("Parameters:%s\n", d.Params)
	if d.UUID != "" {
		fmt.Printf("UUID:       %s\n", d.UUID)
	}
	if d.UserData != "" {
		fmt.Printf("User data:  %s\n", d.UserData)
	}
	fmt.Println()
}
