package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//set with -ldflags "-X github.com/microdroid-test/payload/cmd.version=..."
var version = "development"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print payload version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}
