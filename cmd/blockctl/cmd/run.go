package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/processing"
)

var defaultTestRunCmd = &cobra.Command{
	Use:   "default-test-run",
	Short: "Process a small sample of the target list (test-mode limit, no --all)",
	RunE: func(c *cobra.Command, args []string) error {
		return runManager(c.Context(), false, false)
	},
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Process the entire target list",
	RunE: func(c *cobra.Command, args []string) error {
		return runManager(c.Context(), true, false)
	},
}

var retryOnlyCmd = &cobra.Command{
	Use:   "retry-only",
	Short: "Run only the auto-retry sweep over persisted transient failures",
	RunE: func(c *cobra.Command, args []string) error {
		return runManager(c.Context(), true, true)
	},
}

// runManager loads the target list and drives one Manager.Run,
// printing the §4.5 progress line on completion. retryOnlyMode skips
// the primary pass entirely — AutoRetry is forced on and MaxTargets
// becomes irrelevant to the (already bounded) retry candidate list.
func runManager(ctx context.Context, all, retryOnlyMode bool) error {
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	targetList, err := config.LoadTargetList(d.cfg.TargetList.Path)
	if err != nil {
		return err
	}
	targets := domain.TargetsFromList(targetList)

	procCfg := d.cfg.Processing
	procCfg.All = all
	if retryOnlyMode {
		procCfg.AutoRetry = true
		targets = nil
	}

	mgr := processing.NewManager(d.store, d.resolver, d.api, d.tiers, procCfg, d.logger, d.registry.Processing())

	progress, err := mgr.Run(ctx, targets)
	d.tiers.EvictExcess()

	fmt.Printf("session %s: completed=%d blocked=%d skipped=%d errors=%d\n",
		mgr.SessionID(), progress.Completed, progress.Blocked, progress.Skipped, progress.Errors)

	if err != nil {
		return err
	}
	return nil
}
