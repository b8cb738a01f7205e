package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestCache(t *testing.T, redisAddr string) *ThreeTierCache {
	t.Helper()
	cfg := config.CacheConfig{
		Dir:                 t.TempDir(),
		LookupTTL:           time.Hour,
		ProfileTTL:          time.Hour,
		RelationshipTTL:     time.Hour,
		LRUSize:             100,
		ProfileCeiling:      2,
		RelationshipCeiling: 2,
	}
	if redisAddr != "" {
		cfg.RedisEnabled = true
		cfg.RedisAddr = redisAddr
	}
	c, err := Open(context.Background(), cfg, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLookupTier_SetThenGetAcrossLRUAndFile(t *testing.T) {
	c := openTestCache(t, "")

	_, ok := c.GetLookup(context.Background(), "alice")
	assert.False(t, ok)

	require.NoError(t, c.SetLookup(context.Background(), "alice", "123"))

	id, ok := c.GetLookup(context.Background(), "alice")
	require.True(t, ok)
	assert.Equal(t, "123", id)

	c.lookupLRU.purge()
	id, ok = c.GetLookup(context.Background(), "alice")
	require.True(t, ok)
	assert.Equal(t, "123", id)
}

func TestLookupTier_RedisMirrorFallback(t *testing.T) {
	srv := miniredis.RunT(t)
	c := openTestCache(t, srv.Addr())

	require.NoError(t, c.SetLookup(context.Background(), "bob", "456"))

	c.lookupLRU.purge()
	// remove the file-tier entry so only the mirror can answer
	c.lookupFiles = mustNewFileTier(t, t.TempDir(), "lookups", time.Hour)

	id, ok := c.GetLookup(context.Background(), "bob")
	require.True(t, ok)
	assert.Equal(t, "456", id)
}

func mustNewFileTier(t *testing.T, dir, name string, ttl time.Duration) *fileTier {
	t.Helper()
	ft, err := newFileTier(dir, name, ttl, testLogger())
	require.NoError(t, err)
	return ft
}

func TestProfileTier_ExpiresAfterTTL(t *testing.T) {
	cfg := config.CacheConfig{Dir: t.TempDir(), ProfileTTL: 10 * time.Millisecond, LRUSize: 10}
	c, err := Open(context.Background(), cfg, nil, testLogger())
	require.NoError(t, err)

	require.NoError(t, c.SetProfile("123", &domain.Profile{NumericID: "123", Handle: "alice"}))
	c.profileLRU.purge()

	p, ok := c.GetProfile("123")
	require.True(t, ok)
	assert.Equal(t, "alice", p.Handle)

	time.Sleep(20 * time.Millisecond)
	c.profileLRU.purge()
	_, ok = c.GetProfile("123")
	assert.False(t, ok)
}

func TestCoverageAnalysis_ClassifiesFullPartialMiss(t *testing.T) {
	c := openTestCache(t, "")

	require.NoError(t, c.SetProfile("full", &domain.Profile{NumericID: "full"}))
	require.NoError(t, c.SetRelationship("full", &domain.Relationship{}))

	require.NoError(t, c.SetProfile("partial", &domain.Profile{NumericID: "partial"}))

	targets := []domain.Target{
		{NumericID: "full"},
		{NumericID: "partial"},
		{NumericID: "missing"},
	}
	result := c.CoverageAnalysis(targets)

	assert.Equal(t, domain.CoverageFull, result["full"])
	assert.Equal(t, domain.CoveragePartial, result["partial"])
	assert.Equal(t, domain.CoverageMiss, result["missing"])
}

func TestEvictExcess_PrunesOldestAboveCeiling(t *testing.T) {
	c := openTestCache(t, "")

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		require.NoError(t, c.SetProfile(key, &domain.Profile{NumericID: key}))
		time.Sleep(time.Millisecond)
	}

	c.EvictExcess()

	entries, err := os.ReadDir(c.profileFiles.dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), c.profileCeiling)
}
