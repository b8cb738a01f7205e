package cache

import (
	"context"
	"log/slog"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/metrics"
)

const (
	tierLookup       = "lookup"
	tierProfile      = "profile"
	tierRelationship = "relationship"
)

// ThreeTierCache is the resolve cache C5's batcher consults before ever
// making a network call: an LRU in front of a file tier, one pair per
// cache kind, plus an optional redis mirror on the lookup tier.
type ThreeTierCache struct {
	lookupFiles       *fileTier
	profileFiles      *fileTier
	relationshipFiles *fileTier

	lookupLRU       *lruFront[string]
	profileLRU      *lruFront[*domain.Profile]
	relationshipLRU *lruFront[*domain.Relationship]

	mirror *redisMirror

	profileCeiling      int
	relationshipCeiling int

	metrics *metrics.CacheMetrics
	logger  *slog.Logger
}

// Open builds the three file tiers (creating cfg.Dir's subdirectories
// as needed), their LRU fronts, and — if enabled — the redis mirror.
func Open(ctx context.Context, cfg config.CacheConfig, cacheMetrics *metrics.CacheMetrics, logger *slog.Logger) (*ThreeTierCache, error) {
	lookupFiles, err := newFileTier(cfg.Dir, "lookups", cfg.LookupTTL, logger)
	if err != nil {
		return nil, err
	}
	profileFiles, err := newFileTier(cfg.Dir, "profiles", cfg.ProfileTTL, logger)
	if err != nil {
		return nil, err
	}
	relationshipFiles, err := newFileTier(cfg.Dir, "relationships", cfg.RelationshipTTL, logger)
	if err != nil {
		return nil, err
	}

	lookupLRU, err := newLRUFront[string](cfg.LRUSize, cfg.LookupTTL)
	if err != nil {
		return nil, err
	}
	profileLRU, err := newLRUFront[*domain.Profile](cfg.LRUSize, cfg.ProfileTTL)
	if err != nil {
		return nil, err
	}
	relationshipLRU, err := newLRUFront[*domain.Relationship](cfg.LRUSize, cfg.RelationshipTTL)
	if err != nil {
		return nil, err
	}

	c := &ThreeTierCache{
		lookupFiles:         lookupFiles,
		profileFiles:        profileFiles,
		relationshipFiles:   relationshipFiles,
		lookupLRU:           lookupLRU,
		profileLRU:          profileLRU,
		relationshipLRU:     relationshipLRU,
		profileCeiling:      cfg.ProfileCeiling,
		relationshipCeiling: cfg.RelationshipCeiling,
		metrics:             cacheMetrics,
		logger:              logger,
	}

	if cfg.RedisEnabled {
		mirror, err := newRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LookupTTL, logger)
		if err != nil {
			return nil, err
		}
		c.mirror = mirror
	}

	c.EvictExcess()
	return c, nil
}

// Close releases the redis mirror connection, if one was opened.
func (c *ThreeTierCache) Close() error {
	if c.mirror != nil {
		return c.mirror.close()
	}
	return nil
}

// GetLookup resolves handle to a numeric id via L1 -> file tier -> redis
// mirror, in that order, populating faster tiers on a slower hit.
func (c *ThreeTierCache) GetLookup(ctx context.Context, handle string) (string, bool) {
	if id, ok := c.lookupLRU.get(handle); ok {
		c.metrics.RecordHit(tierLookup)
		return id, true
	}

	var id string
	if found, err := c.lookupFiles.get(handle, &id); err == nil && found {
		c.lookupLRU.add(handle, id)
		c.metrics.RecordHit(tierLookup)
		return id, true
	}

	if c.mirror != nil {
		if id, ok := c.mirror.get(ctx, handle); ok {
			c.lookupLRU.add(handle, id)
			_ = c.lookupFiles.set(handle, id)
			c.metrics.RecordHit(tierLookup)
			return id, true
		}
	}

	c.metrics.RecordMiss(tierLookup)
	return "", false
}

// SetLookup records a resolved handle->numeric-id mapping in every tier.
func (c *ThreeTierCache) SetLookup(ctx context.Context, handle, numericID string) error {
	c.lookupLRU.add(handle, numericID)
	if err := c.lookupFiles.set(handle, numericID); err != nil {
		return err
	}
	if c.mirror != nil {
		c.mirror.set(ctx, handle, numericID)
	}
	return nil
}

// GetProfile returns the cached profile for key (a target's Key()).
func (c *ThreeTierCache) GetProfile(key string) (*domain.Profile, bool) {
	if p, ok := c.profileLRU.get(key); ok {
		c.metrics.RecordHit(tierProfile)
		return p, true
	}
	var p domain.Profile
	if found, err := c.profileFiles.get(key, &p); err == nil && found {
		c.profileLRU.add(key, &p)
		c.metrics.RecordHit(tierProfile)
		return &p, true
	}
	c.metrics.RecordMiss(tierProfile)
	return nil, false
}

// SetProfile caches p under key.
func (c *ThreeTierCache) SetProfile(key string, p *domain.Profile) error {
	c.profileLRU.add(key, p)
	return c.profileFiles.set(key, p)
}

// GetRelationship returns the cached relationship snapshot for key.
func (c *ThreeTierCache) GetRelationship(key string) (*domain.Relationship, bool) {
	if r, ok := c.relationshipLRU.get(key); ok {
		c.metrics.RecordHit(tierRelationship)
		return r, true
	}
	var r domain.Relationship
	if found, err := c.relationshipFiles.get(key, &r); err == nil && found {
		c.relationshipLRU.add(key, &r)
		c.metrics.RecordHit(tierRelationship)
		return &r, true
	}
	c.metrics.RecordMiss(tierRelationship)
	return nil, false
}

// SetRelationship caches r under key.
func (c *ThreeTierCache) SetRelationship(key string, r *domain.Relationship) error {
	c.relationshipLRU.add(key, r)
	return c.relationshipFiles.set(key, r)
}

// CoverageAnalysis classifies each target's cache footprint as full
// (profile and relationship both cached), partial (exactly one), or
// miss (neither) — driving C5's decision about which targets still
// need a network round trip.
func (c *ThreeTierCache) CoverageAnalysis(targets []domain.Target) map[string]domain.CoverageClass {
	result := make(map[string]domain.CoverageClass, len(targets))
	for _, target := range targets {
		key := target.Key()
		_, hasProfile := c.GetProfile(key)
		_, hasRelationship := c.GetRelationship(key)

		var class domain.CoverageClass
		switch {
		case hasProfile && hasRelationship:
			class = domain.CoverageFull
		case hasProfile || hasRelationship:
			class = domain.CoveragePartial
		default:
			class = domain.CoverageMiss
		}
		result[key] = class
		c.metrics.RecordCoverage(coverageLabel(class))
	}
	return result
}

func coverageLabel(class domain.CoverageClass) string {
	switch class {
	case domain.CoverageFull:
		return "full_hit"
	case domain.CoveragePartial:
		return "partial_hit"
	default:
		return "miss"
	}
}

// InvalidateRelationship drops key's cached relationship snapshot from
// both the LRU front and the file tier, so the next resolve re-fetches
// it instead of serving a pre-block snapshot. Called after a successful
// block, since the caller's relationship to the target just changed.
func (c *ThreeTierCache) InvalidateRelationship(key string) {
	c.relationshipLRU.remove(key)
	if err := c.relationshipFiles.delete(key); err != nil {
		c.logger.Warn("relationship cache invalidate failed", "key", key, "error", err)
	}
}

// EvictExcess prunes the profile and relationship file tiers down to
// their configured ceilings, oldest entries first. Run at cache open
// and after each processed batch.
func (c *ThreeTierCache) EvictExcess() {
	if err := c.profileFiles.evictOldestAbove(c.profileCeiling); err != nil {
		c.logger.Warn("profile cache eviction failed", "error", err)
	}
	if err := c.relationshipFiles.evictOldestAbove(c.relationshipCeiling); err != nil {
		c.logger.Warn("relationship cache eviction failed", "error", err)
	}
}
