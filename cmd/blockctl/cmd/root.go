// Package cmd is blockctl's cobra command tree: one subcommand per
// operation in the processing manager's external contract, sharing one
// set of persistent flags for the four path overrides plus the
// processing tunables.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvidlabs/blockctl/internal/cache"
	"github.com/corvidlabs/blockctl/internal/client"
	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/metrics"
	"github.com/corvidlabs/blockctl/internal/storage/sqlite"
	"github.com/corvidlabs/blockctl/pkg/logger"
)

var (
	cfgFile string
	v       = viper.New()
)

// Execute runs the root command; cmd/blockctl/main.go's sole job is to
// call this and set the process exit code from the returned error.
func Execute() error {
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "blockctl",
	Short: "Bulk account blocker",
	Long:  "blockctl resolves a target list against the upstream API and issues blocks/create calls, recording every outcome so reruns are safe.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	rootCmd.PersistentFlags().String("cookie-path", "", "path to the cookie jar file (env BLOCKCTL_COOKIE_PATH)")
	rootCmd.PersistentFlags().String("target-list-path", "", "path to the target list file (env BLOCKCTL_TARGET_LIST_PATH)")
	rootCmd.PersistentFlags().String("persistence-path", "", "path to the sqlite outcome store (env BLOCKCTL_PERSISTENCE_PATH)")
	rootCmd.PersistentFlags().String("cache-dir", "", "path to the three-tier cache directory (env BLOCKCTL_CACHE_DIR)")
	rootCmd.PersistentFlags().Int("max-targets", 0, "cap the number of targets processed this run (0 = no explicit cap; the test-mode limit still applies without --all)")
	rootCmd.PersistentFlags().Duration("inter-call-delay", 0, "cooperative delay between block calls (0 = use config default)")
	rootCmd.PersistentFlags().Bool("enable-forwarded-for", false, "attach a synthetic X-Forwarded-For header to every call")
	rootCmd.PersistentFlags().Bool("disable-header-enhancement", false, "omit the per-call transaction-id header")
	rootCmd.PersistentFlags().Bool("dry-run", false, "resolve and classify but never call blocks/create")

	_ = v.BindPFlag("session.cookie_path", rootCmd.PersistentFlags().Lookup("cookie-path"))
	_ = v.BindPFlag("target_list.path", rootCmd.PersistentFlags().Lookup("target-list-path"))
	_ = v.BindPFlag("persistence.path", rootCmd.PersistentFlags().Lookup("persistence-path"))
	_ = v.BindPFlag("cache.dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	_ = v.BindPFlag("processing.max_targets", rootCmd.PersistentFlags().Lookup("max-targets"))
	_ = v.BindPFlag("processing.inter_call_delay", rootCmd.PersistentFlags().Lookup("inter-call-delay"))
	_ = v.BindPFlag("client.enable_forwarded_for", rootCmd.PersistentFlags().Lookup("enable-forwarded-for"))
	_ = v.BindPFlag("client.disable_header_enhancement", rootCmd.PersistentFlags().Lookup("disable-header-enhancement"))
	_ = v.BindPFlag("processing.dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(defaultTestRunCmd, runAllCmd, retryOnlyCmd, resetRetryCountsCmd,
		printStatsCmd, debugErrorsSampleCmd, debugSingleTargetCmd, migrateCmd, versionCmd)
}

// deps bundles the components every run/debug/stats command needs,
// built once per invocation from the resolved Config.
type deps struct {
	cfg      *config.Config
	store    *sqlite.Store
	tiers    *cache.ThreeTierCache
	api      *client.Client
	resolver *client.Resolver
	logger   *slog.Logger
	registry *metrics.Registry
	close    func()
}

// buildDeps loads config, opens the persistence store and cache, and
// constructs the API client/resolver — the full dependency graph every
// subcommand but `version` needs.
func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(v, cfgFile)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(logger.Config{
		Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output,
		Filename: cfg.Log.Filename, MaxSize: cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups, MaxAge: cfg.Log.MaxAge, Compress: cfg.Log.Compress,
	})

	registry := metrics.NewRegistry(cfg.Metrics.Namespace)
	log.Debug("resolved configuration", "config", config.NewDefaultConfigSanitizer().Sanitize(cfg))

	jar, err := config.LoadCookieJar(cfg.Session.CookiePath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(ctx, cfg.Persistence, log)
	if err != nil {
		return nil, err
	}

	tiers, err := cache.Open(ctx, cfg.Cache, registry.Cache(), log)
	if err != nil {
		store.Close()
		return nil, err
	}

	api := client.New(cfg.Client, jar, cfg.Session.CookiePath, log, registry.Client(), registry.Retry())
	resolver := client.NewResolver(api, tiers, log)

	return &deps{
		cfg: cfg, store: store, tiers: tiers, api: api, resolver: resolver,
		logger: log, registry: registry,
		close: func() {
			_ = tiers.Close()
			_ = store.Close()
		},
	}, nil
}
