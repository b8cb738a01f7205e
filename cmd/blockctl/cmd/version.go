package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidlabs/blockctl/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the blockctl version",
	RunE: func(c *cobra.Command, args []string) error {
		fmt.Println(config.Version(config.DefaultVersionFilePath()))
		return nil
	},
}
