package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigreer/lustrezfs/internal/db"
	"github.com/sigreer/lustrezfs/internal/osd"
)

var listCmd = &cobra.Command{
	Use:   "list [pool|dataset]",
	Short: "List the Lustre targets stored on this host",
	Long: `Scan filesystems for Lustre target properties and list the targets
found. Without an argument every imported pool is scanned. Found targets
are recorded in the history database.`,
	Args: invalidArgs(cobra.MaximumNArgs(1)),
	RunE: runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	var root string
	if len(args) == 1 {
		root = args[0]
	}

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

	targets, err := b.ScanTargets(root)
	if err != nil {
		return err
	}

	for i := range targets {
		t := &targets[i]
		e.record(t.Dataset, db.EventRead, &osd.MkfsOpts{Device: t.Dataset, LDD: t.LDD}, nil, nil)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(targets)
	}

	if len(targets) == 0 {
		fmt.Println("No Lustre targets found.")
		return nil
	}

	fmt.Printf("%-28s %-18s %-10s %-6s %s\n", "DATASET", "SVNAME", "FSNAME", "INDEX", "TYPE")
	fmt.Println(strings.Repeat("-", 75))
	for _, t := range targets {
		fmt.Printf("%-28s %-18s %-10s %-6d %s\n",
			t.Dataset, t.LDD.SVName, dash(t.LDD.FSName), t.LDD.Index, t.LDD.ServerType())
	}
	return nil
}
