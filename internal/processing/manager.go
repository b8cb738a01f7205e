package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/blockctl/internal/cache"
	"github.com/corvidlabs/blockctl/internal/client"
	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/metrics"
	"github.com/corvidlabs/blockctl/internal/resilience"
	"github.com/corvidlabs/blockctl/internal/storage/sqlite"
)

// Progress is the running tally the manager reports after each batch
// and returns when a run finishes.
type Progress struct {
	Completed int
	Blocked   int
	Skipped   int
	Errors    int
}

func (p *Progress) add(other Progress) {
	p.Completed += other.Completed
	p.Blocked += other.Blocked
	p.Skipped += other.Skipped
	p.Errors += other.Errors
}

// Manager drives the batch pipeline: prefilter against C2, resolve via
// C5, safety-skip, block, record — one target list, one caller session.
type Manager struct {
	store     *sqlite.Store
	resolver  *client.Resolver
	api       *client.Client
	cache     *cache.ThreeTierCache
	cfg       config.ProcessingConfig
	pacer     *pacer
	logger    *slog.Logger
	metrics   *metrics.ProcessingMetrics
	sessionID string
}

// NewManager builds a Manager for one run, minting a fresh session id
// that every outcome recorded during this run will carry.
func NewManager(store *sqlite.Store, resolver *client.Resolver, api *client.Client, tiers *cache.ThreeTierCache, cfg config.ProcessingConfig, logger *slog.Logger, processingMetrics *metrics.ProcessingMetrics) *Manager {
	return &Manager{
		store:     store,
		resolver:  resolver,
		api:       api,
		cache:     tiers,
		cfg:       cfg,
		pacer:     newPacer(cfg.InterCallDelay),
		logger:    logger,
		metrics:   processingMetrics,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns this run's session id, used by commands that print
// it alongside the final progress line.
func (m *Manager) SessionID() string { return m.sessionID }

// Run processes targets, applying the test-mode/max-targets slicing
// rule from §4.5's Input contract, then the auto-retry pass if enabled.
func (m *Manager) Run(ctx context.Context, targets []domain.Target) (Progress, error) {
	targets = m.applyRunLimit(targets)

	total, err := m.runPass(ctx, targets, m.cfg.RetryCeiling)
	if err != nil {
		return total, err
	}

	if !m.cfg.AutoRetry {
		return total, nil
	}

	candidates, err := m.store.ListRetryCandidates(ctx, m.cfg.AutoRetryCeiling)
	if err != nil {
		return total, &domain.PersistenceError{Op: "list_retry_candidates", Err: err}
	}
	if len(candidates) == 0 {
		return total, nil
	}

	retryTargets := make([]domain.Target, len(candidates))
	for i, o := range candidates {
		retryTargets[i] = domain.Target{Handle: o.Handle, NumericID: o.NumericID}
	}

	retryProgress, err := m.runPass(ctx, retryTargets, m.cfg.AutoRetryCeiling)
	total.add(retryProgress)
	return total, err
}

// applyRunLimit caps targets per the configured MaxTargets, or — when
// neither --all nor an explicit MaxTargets was requested — the
// test-mode limit.
func (m *Manager) applyRunLimit(targets []domain.Target) []domain.Target {
	limit := len(targets)
	switch {
	case m.cfg.MaxTargets > 0 && m.cfg.MaxTargets < limit:
		limit = m.cfg.MaxTargets
	case m.cfg.MaxTargets == 0 && !m.cfg.All && m.cfg.TestModeLimit < limit:
		limit = m.cfg.TestModeLimit
	}
	return targets[:limit]
}

// runPass slices targets into batches of cfg.BatchSize and runs each
// through runBatch in turn. This is the shared body behind both the
// primary pass and the (non-recursive) auto-retry pass.
func (m *Manager) runPass(ctx context.Context, targets []domain.Target, ceiling int) (Progress, error) {
	var total Progress
	batchSize := m.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(targets); start += batchSize {
		end := start + batchSize
		if end > len(targets) {
			end = len(targets)
		}
		batchStart := time.Now()

		progress, err := m.runBatch(ctx, targets[start:end], ceiling)
		total.add(progress)

		m.metrics.RecordBatch(time.Since(batchStart).Seconds(), end-start)
		m.cache.EvictExcess()
		m.logger.Info("batch complete",
			"completed", progress.Completed, "blocked", progress.Blocked,
			"skipped", progress.Skipped, "errors", progress.Errors,
			"total_completed", total.Completed, "total_blocked", total.Blocked)

		if err != nil {
			return total, err
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	return total, nil
}

// runBatch implements the per-batch algorithm of §4.5 steps 1-5.
func (m *Manager) runBatch(ctx context.Context, batch []domain.Target, ceiling int) (Progress, error) {
	var progress Progress

	workload, skipped, err := m.prefilter(ctx, batch)
	if err != nil {
		return progress, err
	}
	progress.Skipped += skipped

	if len(workload) == 0 {
		return progress, nil
	}

	resolved, err := m.resolver.ResolveUsers(ctx, workload)
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			return progress, err
		}
		return progress, fmt.Errorf("processing: resolve_users failed: %w", err)
	}

	for _, target := range workload {
		u, ok := resolved[target.Key()]
		if !ok {
			continue
		}

		switch {
		case u.Permanent != nil:
			if err := m.recordPermanentResolveFailure(ctx, target, *u.Permanent); err != nil {
				return progress, err
			}
			progress.Errors++
		case u.Transient != nil:
			if err := m.recordTransientResolveFailure(ctx, target, *u.Transient); err != nil {
				return progress, err
			}
			progress.Errors++
		default:
			outcome, blockErr := m.processResolved(ctx, target, u, ceiling)
			progress.Completed++
			switch outcome {
			case domain.StatusSuccess:
				progress.Blocked++
			case domain.StatusSkipped:
				progress.Skipped++
			case domain.StatusFailed:
				progress.Errors++
			}
			if blockErr != nil {
				var authErr *domain.AuthError
				var persistErr *domain.PersistenceError
				if errors.As(blockErr, &authErr) || errors.As(blockErr, &persistErr) {
					return progress, blockErr
				}
			}
		}

		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
	}

	return progress, nil
}

// prefilter drops targets already recorded as a permanent failure or a
// success, counting each as skipped, per §4.5 step 2.
func (m *Manager) prefilter(ctx context.Context, batch []domain.Target) ([]domain.Target, int, error) {
	keys := make([]string, len(batch))
	for i, t := range batch {
		keys[i] = t.Key()
	}

	permanent, err := m.store.GetPermanentFailures(ctx, keys)
	if err != nil {
		return nil, 0, &domain.PersistenceError{Op: "get_permanent_failures", Err: err}
	}
	successful, err := m.store.GetSuccessful(ctx, keys)
	if err != nil {
		return nil, 0, &domain.PersistenceError{Op: "get_successful", Err: err}
	}

	done := make(map[string]struct{}, len(permanent)+len(successful))
	for _, o := range permanent {
		done[o.Key()] = struct{}{}
	}
	for _, o := range successful {
		done[o.Key()] = struct{}{}
	}

	workload := make([]domain.Target, 0, len(batch))
	skipped := 0
	for _, t := range batch {
		if _, ok := done[t.Key()]; ok {
			skipped++
			continue
		}
		workload = append(workload, t)
	}
	return workload, skipped, nil
}

// processResolved runs step 4 of §4.5 for one resolved-ok target:
// safety-skip, block, record, and the outcome-dependent pacing.
func (m *Manager) processResolved(ctx context.Context, target domain.Target, u *domain.ResolvedUser, ceiling int) (domain.Status, error) {
	now := time.Now()
	key := target.Key()

	if u.Relationship == nil {
		return domain.StatusFailed, m.recordTransientResolveFailure(ctx, target, domain.ErrorKindUnknown)
	}

	if reason, skip := shouldSkip(u.Relationship); skip {
		err := m.recordOutcome(ctx, domain.Outcome{
			Handle: target.Handle, NumericID: target.NumericID, DisplayName: profileName(u.Profile),
			Status: domain.StatusSkipped, UserState: userStateOf(u.Profile), SkipReason: reason,
			Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
		})
		m.metrics.RecordTarget("skipped", string(reason))
		return domain.StatusSkipped, err
	}

	if m.cfg.DryRun {
		m.logger.Info("dry run: would block", "target", target.String())
		return domain.StatusSkipped, nil
	}

	blockErr := m.api.BlockCreate(ctx, u.Profile.NumericID)
	if blockErr == nil {
		recErr := m.recordOutcome(ctx, domain.Outcome{
			Handle: target.Handle, NumericID: u.Profile.NumericID, DisplayName: u.Profile.DisplayName,
			Status: domain.StatusSuccess, UserState: u.Profile.State,
			Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
		})
		m.cache.InvalidateRelationship(key)
		m.metrics.RecordTarget("blocked", "")
		if recErr != nil {
			return domain.StatusSuccess, recErr
		}
		if err := m.pacer.wait(ctx); err != nil {
			return domain.StatusSuccess, err
		}
		return domain.StatusSuccess, nil
	}

	var authErr *domain.AuthError
	if errors.As(blockErr, &authErr) {
		recErr := m.recordOutcome(ctx, domain.Outcome{
			Handle: target.Handle, NumericID: u.Profile.NumericID, DisplayName: u.Profile.DisplayName,
			Status: domain.StatusFailed, UserState: domain.UserStateUnknown, ErrorKind: domain.ErrorKindUnknown,
			ErrorSample: blockErr.Error(), Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
		})
		m.metrics.RecordTarget("failed_transient", "")
		if recErr != nil {
			return domain.StatusFailed, recErr
		}
		return domain.StatusFailed, blockErr
	}

	c := classifyBlockError(blockErr, now)
	if c.Kind == resilience.KindPermanent {
		recErr := m.recordOutcome(ctx, domain.Outcome{
			Handle: target.Handle, NumericID: u.Profile.NumericID, DisplayName: u.Profile.DisplayName,
			Status: domain.StatusFailed, UserState: c.UserState, ErrorSample: blockErr.Error(),
			Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
		})
		m.metrics.RecordTarget("failed_permanent", "")
		return domain.StatusFailed, recErr
	}

	recErr := m.recordOutcome(ctx, domain.Outcome{
		Handle: target.Handle, NumericID: u.Profile.NumericID, DisplayName: u.Profile.DisplayName,
		Status: domain.StatusFailed, UserState: domain.UserStateUnknown, ErrorKind: c.ErrorKind,
		ErrorSample: blockErr.Error(), Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
	})
	m.metrics.RecordTarget("failed_transient", "")
	if recErr != nil {
		return domain.StatusFailed, recErr
	}
	if err := m.pacer.wait(ctx); err != nil {
		return domain.StatusFailed, err
	}
	return domain.StatusFailed, nil
}

func (m *Manager) recordPermanentResolveFailure(ctx context.Context, target domain.Target, state domain.UserState) error {
	now := time.Now()
	err := m.recordOutcome(ctx, domain.Outcome{
		Handle: target.Handle, NumericID: target.NumericID,
		Status: domain.StatusFailed, UserState: state,
		Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
	})
	m.metrics.RecordTarget("failed_permanent", "")
	return err
}

func (m *Manager) recordTransientResolveFailure(ctx context.Context, target domain.Target, kind domain.ErrorKind) error {
	now := time.Now()
	err := m.recordOutcome(ctx, domain.Outcome{
		Handle: target.Handle, NumericID: target.NumericID,
		Status: domain.StatusFailed, UserState: domain.UserStateUnknown, ErrorKind: kind,
		Attempts: 1, FirstSeen: now, LastUpdated: now, SessionID: m.sessionID,
	})
	m.metrics.RecordTarget("failed_transient", "")
	return err
}

// recordOutcome persists one outcome, returning the store's own
// *domain.PersistenceError unchanged so callers can bubble it all the
// way to main's exit-code switch — a failed write here means the run's
// at-most-once bookkeeping can no longer be trusted for this target.
func (m *Manager) recordOutcome(ctx context.Context, o domain.Outcome) error {
	if err := m.store.RecordOutcome(ctx, o); err != nil {
		m.logger.Error("record_outcome failed", "target", o.Key(), "error", err)
		return err
	}
	return nil
}

func profileName(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	return p.DisplayName
}

func userStateOf(p *domain.Profile) domain.UserState {
	if p == nil {
		return domain.UserStateUnknown
	}
	return p.State
}
