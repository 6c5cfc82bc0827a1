package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigreer/lustrezfs/internal/osd"
	"github.com/sigreer/lustrezfs/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  invalidArgs(cobra.NoArgs),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lustrezfs %s (ldd config version %d, properties %s*)\n",
			version.Version, version.LDDConfigVersion, osd.PropPrefix)
	},
}
