package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/stats"
)

var debugErrorsSampleCmd = &cobra.Command{
	Use:   "debug-errors-sample",
	Short: "Dump sampled error messages of permanent and retry-eligible failed targets, by error kind",
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()

		samples, err := stats.NewReporter(d.store).ErrorSamples(c.Context(), d.cfg.Processing.RetryCeiling)
		if err != nil {
			return err
		}
		for _, kind := range sortedErrorKinds(samples) {
			fmt.Printf("%s (%d):\n", kind, len(samples[kind]))
			for _, s := range samples[kind] {
				fmt.Printf("  - %s\n", s)
			}
		}
		return nil
	},
}

var debugSingleTargetCmd = &cobra.Command{
	Use:   "debug-single-target <handle-or-id>",
	Short: "Resolve one target and print its profile, relationship, and any persisted successful-block record without blocking it",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()

		target := targetFromArg(args[0])
		resolved, err := d.resolver.ResolveUsers(c.Context(), []domain.Target{target})
		if err != nil {
			return err
		}

		u, ok := resolved[target.Key()]
		if !ok {
			fmt.Printf("%s: no resolve result\n", target)
			return nil
		}
		switch {
		case u.Permanent != nil:
			fmt.Printf("%s: permanent failure, user_state=%s\n", target, *u.Permanent)
		case u.Transient != nil:
			fmt.Printf("%s: transient failure, error_kind=%s\n", target, *u.Transient)
		default:
			fmt.Printf("%s: profile=%+v relationship=%+v\n", target, *u.Profile, *u.Relationship)
		}

		outcomes, err := d.store.GetSuccessful(c.Context(), []string{target.Key()})
		if err == nil {
			for _, o := range outcomes {
				if o.Key() == target.Key() {
					fmt.Printf("persisted outcome: %+v\n", o)
				}
			}
		}
		return nil
	},
}

// targetFromArg treats an all-digit argument as a numeric id, anything
// else as a handle, mirroring the target-list file's own format split.
func targetFromArg(arg string) domain.Target {
	for _, r := range arg {
		if r < '0' || r > '9' {
			return domain.Target{Handle: arg}
		}
	}
	return domain.Target{NumericID: arg}
}
