package cmd

import (
	"fmt"

	"github.com/chukul/s3mirror/internal"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("s3mirror version %s\n", internal.CurrentVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
