package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticeforge/veridian/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.FullVersion())
	},
}
