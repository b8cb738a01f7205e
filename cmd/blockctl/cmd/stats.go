package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/stats"
)

var printStatsCmd = &cobra.Command{
	Use:   "print-stats",
	Short: "Print totals and histograms over the outcome store",
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()

		report, err := stats.NewReporter(d.store).Generate(c.Context(), d.cfg.Processing.RetryCeiling)
		if err != nil {
			return err
		}

		t := report.Totals
		fmt.Printf("version: %s\n", config.Version(config.DefaultVersionFilePath()))
		fmt.Printf("all=%d blocked=%d remaining=%d failed=%d retry_ceiling_hit=%d retry_eligible=%d\n",
			t.All, t.Blocked, t.Remaining, t.Failed, t.RetryCeilingHit, t.RetryEligible)

		fmt.Println("by user state:")
		for _, state := range sortedUserStates(report.UserStates) {
			fmt.Printf("  %-12s %d\n", state, report.UserStates[state])
		}

		fmt.Println("by error kind:")
		for _, kind := range sortedErrorKinds(report.ErrorKinds) {
			fmt.Printf("  %-14s %d\n", kind, report.ErrorKinds[kind])
			for _, sample := range report.ErrorSamples[kind] {
				fmt.Printf("    - %s\n", sample)
			}
		}

		a := report.AttemptsHistogram
		fmt.Printf("attempts: count=%d min=%d max=%d mean=%.2f p50=%d p95=%d p99=%d\n",
			a.Count, a.Min, a.Max, a.Mean, a.P50, a.P95, a.P99)
		return nil
	},
}

func sortedUserStates(m map[domain.UserState]int) []domain.UserState {
	out := make([]domain.UserState, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedErrorKinds(m map[domain.ErrorKind]int) []domain.ErrorKind {
	out := make([]domain.ErrorKind, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
