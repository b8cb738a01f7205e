package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corvidlabs/blockctl/internal/cache"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/resilience"
)

const usersByRestIdsChunk = 50

// Resolver batches target resolution against the three-tier cache,
// fetching from upstream only what coverage analysis says is missing.
type Resolver struct {
	client *Client
	cache  *cache.ThreeTierCache
	logger *slog.Logger
}

// NewResolver ties a Client to a ThreeTierCache.
func NewResolver(c *Client, tiers *cache.ThreeTierCache, logger *slog.Logger) *Resolver {
	return &Resolver{client: c, cache: tiers, logger: logger}
}

// ResolveUsers resolves targets against cache first, upstream second,
// per §4.4.4: full-hit entries return from cache, partial-hit entries
// fetch only the missing tier, misses are chunked through
// UsersByRestIds (or resolved one at a time via UserByScreenName when
// starting from handle-only input with no cached lookup). A target
// whose fetch fails is still present in the result, carrying a
// Permanent or Transient classification instead of a Profile — the
// manager splits on that, it is never silently dropped. The one
// exception is an AuthError, which aborts resolution entirely: the
// session itself is no longer usable for any target in this batch.
func (r *Resolver) ResolveUsers(ctx context.Context, targets []domain.Target) (map[string]*domain.ResolvedUser, error) {
	out := make(map[string]*domain.ResolvedUser, len(targets))
	coverage := r.cache.CoverageAnalysis(targets)

	var misses []domain.Target
	for _, t := range targets {
		key := t.Key()
		switch coverage[key] {
		case domain.CoverageFull:
			profile, _ := r.cache.GetProfile(key)
			rel, _ := r.cache.GetRelationship(key)
			out[key] = &domain.ResolvedUser{Target: t, Profile: profile, Relationship: rel}
		case domain.CoveragePartial:
			resolved, err := r.fetchMissingTier(ctx, t)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		default:
			misses = append(misses, t)
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	resolved, err := r.resolveMisses(ctx, misses)
	if err != nil {
		return nil, err
	}
	for k, v := range resolved {
		out[k] = v
	}
	return out, nil
}

// fetchMissingTier re-fetches a partial-hit target in full — the
// upstream surface has no relationship-only call distinct from the
// full user lookup, so a partial hit still costs one GraphQL call, but
// the cache is repopulated for both tiers afterward. Returns a non-nil
// error only for an AuthError; any other fetch failure is folded into
// the returned ResolvedUser's classification.
func (r *Resolver) fetchMissingTier(ctx context.Context, t domain.Target) (*domain.ResolvedUser, error) {
	profile, rel, err := r.fetchOne(ctx, t)
	if err != nil {
		return r.classifyFailure(t, err)
	}
	if profile == nil {
		return r.classifyFailure(t, errors.New("client: upstream returned no user for target"))
	}
	r.populate(t.Key(), profile, rel)
	return &domain.ResolvedUser{Target: t, Profile: profile, Relationship: rel}, nil
}

func (r *Resolver) fetchOne(ctx context.Context, t domain.Target) (*domain.Profile, *domain.Relationship, error) {
	if t.NumericID != "" {
		return r.client.UserByRestId(ctx, t.NumericID)
	}
	return r.client.UserByScreenName(ctx, t.Handle)
}

// classifyFailure turns a resolve error into a ResolvedUser carrying a
// Permanent or Transient classification, or propagates it as a hard
// error when it is an AuthError (fatal to the whole batch).
func (r *Resolver) classifyFailure(t domain.Target, err error) (*domain.ResolvedUser, error) {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return nil, err
	}

	c := ClassifyCallError(err, time.Now())
	if c.Kind == resilience.KindPermanent {
		state := c.UserState
		return &domain.ResolvedUser{Target: t, Permanent: &state}, nil
	}
	kind := c.ErrorKind
	return &domain.ResolvedUser{Target: t, Transient: &kind}, nil
}

// resolveMisses chunks numeric-id targets into batches of ≤ 50 through
// UsersByRestIds; handle-only targets with no cached lookup are
// resolved one at a time via UserByScreenName, since the batch
// endpoint only accepts numeric ids.
func (r *Resolver) resolveMisses(ctx context.Context, misses []domain.Target) (map[string]*domain.ResolvedUser, error) {
	out := make(map[string]*domain.ResolvedUser, len(misses))

	var byID []domain.Target
	var byHandle []domain.Target
	// lookedUp maps a numeric id found in the lookup tier back to the
	// handle the caller passed, so that target stays keyed by its handle.
	lookedUp := map[string]string{}
	for _, t := range misses {
		if t.NumericID != "" {
			byID = append(byID, t)
			continue
		}
		if numericID, ok := r.cache.GetLookup(ctx, t.Handle); ok {
			byID = append(byID, domain.Target{Handle: t.Handle, NumericID: numericID})
			lookedUp[numericID] = t.Handle
			continue
		}
		byHandle = append(byHandle, t)
	}
	callerKey := func(t domain.Target) string {
		if h, ok := lookedUp[t.NumericID]; ok && h == t.Handle {
			return h
		}
		return t.Key()
	}

	for _, chunk := range chunkTargets(byID, usersByRestIdsChunk) {
		ids := make([]string, len(chunk))
		for i, t := range chunk {
			ids[i] = t.NumericID
		}
		users, err := r.client.UsersByRestIds(ctx, ids)
		if err != nil {
			var authErr *domain.AuthError
			if errors.As(err, &authErr) {
				return nil, err
			}
			// A whole-chunk call failure (network/5xx) classifies every
			// target in the chunk the same way; none of them were
			// individually rejected by the upstream.
			for _, t := range chunk {
				resolved, classifyErr := r.classifyFailure(t, err)
				if classifyErr != nil {
					return nil, classifyErr
				}
				out[callerKey(t)] = resolved
			}
			continue
		}
		for _, t := range chunk {
			u, ok := users[t.NumericID]
			if !ok {
				// Upstream silently omitted this id from the batch
				// response — the observed signature of a deleted or
				// never-existed account.
				notFound := domain.UserStateNotFound
				out[callerKey(t)] = &domain.ResolvedUser{Target: t, Permanent: &notFound}
				continue
			}
			r.populate(callerKey(t), u.Profile, u.Relationship)
			out[callerKey(t)] = u
		}
	}

	for _, t := range byHandle {
		profile, rel, err := r.client.UserByScreenName(ctx, t.Handle)
		if err != nil {
			resolved, classifyErr := r.classifyFailure(t, err)
			if classifyErr != nil {
				return nil, classifyErr
			}
			out[t.Key()] = resolved
			continue
		}
		if profile == nil {
			notFound := domain.UserStateNotFound
			out[t.Key()] = &domain.ResolvedUser{Target: t, Permanent: &notFound}
			continue
		}
		_ = r.cache.SetLookup(ctx, t.Handle, profile.NumericID)
		r.populate(t.Key(), profile, rel)
		out[t.Key()] = &domain.ResolvedUser{Target: t, Profile: profile, Relationship: rel}
	}

	return out, nil
}

func (r *Resolver) populate(key string, profile *domain.Profile, rel *domain.Relationship) {
	if profile != nil {
		if err := r.cache.SetProfile(key, profile); err != nil {
			r.logger.Warn("cache set profile failed", "key", key, "error", err)
		}
	}
	if rel != nil {
		if err := r.cache.SetRelationship(key, rel); err != nil {
			r.logger.Warn("cache set relationship failed", "key", key, "error", err)
		}
	}
}

func chunkTargets(items []domain.Target, size int) [][]domain.Target {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]domain.Target
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
