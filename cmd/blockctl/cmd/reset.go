package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
)

var resetRetryCountsCmd = &cobra.Command{
	Use:   "reset-retry-counts",
	Short: "Reset the attempts counter for every target in the target list, or for specific ids/handles",
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()

		keys := args
		if len(keys) == 0 {
			targetList, err := config.LoadTargetList(d.cfg.TargetList.Path)
			if err != nil {
				return err
			}
			for _, t := range domain.TargetsFromList(targetList) {
				keys = append(keys, t.Key())
			}
		}

		value, _ := c.Flags().GetInt("value")
		if err := d.store.ResetAttempts(c.Context(), keys, value); err != nil {
			return err
		}
		fmt.Printf("reset attempts to %d for %d key(s)\n", value, len(keys))
		return nil
	},
}

func init() {
	resetRetryCountsCmd.Flags().Int("value", 0, "attempts value to reset to (distinct from a new attempt's increment)")
}
