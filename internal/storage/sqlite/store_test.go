package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/storage/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blockctl.db")
	store, err := sqlite.Open(context.Background(), config.PersistenceConfig{Path: path}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_CreatesAndMigratesDatabase(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Health(context.Background()))
}

func TestRecordOutcome_InsertThenUpdate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	o := domain.Outcome{
		Handle:    "alice",
		Status:    domain.StatusFailed,
		UserState: domain.UserStateUnavailable,
		ErrorKind: domain.ErrorKindServerError,
		SessionID: "run_1",
	}
	require.NoError(t, store.RecordOutcome(ctx, o))

	candidates, err := store.ListRetryCandidates(ctx, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "alice", candidates[0].Handle)
	assert.Equal(t, 1, candidates[0].Attempts)

	require.NoError(t, store.RecordOutcome(ctx, o))
	candidates, err = store.ListRetryCandidates(ctx, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 2, candidates[0].Attempts)
}

func TestRecordOutcome_KeyedByNumericIDWhenPresent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{
		NumericID: "123",
		Handle:    "bob",
		Status:    domain.StatusSuccess,
	}))

	successes, err := store.GetSuccessful(ctx, nil)
	require.NoError(t, err)
	require.Len(t, successes, 1)
	assert.Equal(t, "123", successes[0].NumericID)
	assert.Equal(t, "bob", successes[0].Handle)
}

func TestGetPermanentFailures_ExcludesTransient(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{
		Handle: "suspended-user", Status: domain.StatusFailed, UserState: domain.UserStateSuspended,
	}))
	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{
		Handle: "transient-user", Status: domain.StatusFailed, UserState: domain.UserStateUnavailable,
	}))

	failures, err := store.GetPermanentFailures(ctx, nil)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "suspended-user", failures[0].Handle)
}

func TestGetPermanentFailures_ScopesToGivenKeys(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{
		Handle: "suspended-a", Status: domain.StatusFailed, UserState: domain.UserStateSuspended,
	}))
	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{
		Handle: "suspended-b", Status: domain.StatusFailed, UserState: domain.UserStateSuspended,
	}))

	scoped, err := store.GetPermanentFailures(ctx, []string{"suspended-a"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "suspended-a", scoped[0].Handle)

	unscoped, err := store.GetPermanentFailures(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, unscoped, 2)
}

func TestListRetryCandidates_RespectsAttemptCeiling(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	o := domain.Outcome{Handle: "flaky", Status: domain.StatusFailed, UserState: domain.UserStateUnavailable}
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordOutcome(ctx, o))
	}

	candidates, err := store.ListRetryCandidates(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = store.ListRetryCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestResetAttempts_ZeroesCounter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	o := domain.Outcome{Handle: "flaky", Status: domain.StatusFailed, UserState: domain.UserStateUnavailable}
	require.NoError(t, store.RecordOutcome(ctx, o))
	require.NoError(t, store.RecordOutcome(ctx, o))

	require.NoError(t, store.ResetAttempts(ctx, []string{"flaky"}, 0))

	candidates, err := store.ListRetryCandidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0, candidates[0].Attempts)
}

func TestStats_AggregatesByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{Handle: "a", Status: domain.StatusSuccess}))
	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{Handle: "b", Status: domain.StatusSkipped}))
	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{Handle: "c", Status: domain.StatusFailed, UserState: domain.UserStateSuspended}))
	require.NoError(t, store.RecordOutcome(ctx, domain.Outcome{Handle: "d", Status: domain.StatusFailed, UserState: domain.UserStateUnavailable}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.PermanentFailure)
	assert.Equal(t, 1, stats.TransientFailure)
}

func TestClose_IsIdempotent(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
