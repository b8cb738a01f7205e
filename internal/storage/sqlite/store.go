// Package sqlite is the single local datastore behind every blockctl
// run: one outcomes table recording the most recent attempt on every
// target ever seen, keyed by numeric id when known else by handle.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
)

// chunkSize bounds every batch IN (...) query so a large target list
// never produces a single query with thousands of placeholders.
const chunkSize = 500

// forbiddenPathPrefixes blocks the database from ever being opened
// against a system directory, regardless of what a config file says.
var forbiddenPathPrefixes = []string{"/etc", "/sys", "/proc", "/dev"}

// Store is the outcomes table behind one blockctl invocation. Safe for
// concurrent use: all state lives in the underlying *sql.DB pool.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open creates (if needed) and migrates the sqlite database at
// cfg.Path, returning a ready Store. Parent directories are created
// with 0700, the database file is chmod'd to 0600 after migration.
func Open(ctx context.Context, cfg config.PersistenceConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("persistence path is empty")}
	}
	if strings.Contains(cfg.Path, "..") {
		return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("path contains '..': %s", cfg.Path)}
	}
	for _, prefix := range forbiddenPathPrefixes {
		if strings.HasPrefix(cfg.Path, prefix) {
			return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("forbidden path prefix %s: %s", prefix, cfg.Path)}
		}
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("create directory %s: %w", dir, err)}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("open sqlite: %w", err)}
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("ping sqlite: %w", err)}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Op: "open", Err: fmt.Errorf("enable foreign keys: %w", err)}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}

	if err := os.Chmod(cfg.Path, 0o600); err != nil {
		logger.Warn("failed to set outcome store file permissions", "path", cfg.Path, "error", err)
	}

	logger.Info("outcome store ready", "path", cfg.Path, "max_open_conns", maxOpen, "max_idle_conns", maxIdle)
	return &Store{db: db, logger: logger, path: cfg.Path}, nil
}

// DB exposes the underlying pool for the migrate command, which needs
// it directly rather than through Store's domain-shaped methods.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection pool. Safe to call more
// than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Health reports whether the store is reachable.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.PersistenceError{Op: "health", Err: err}
	}
	return nil
}

// RecordOutcome upserts the result of one attempt, keyed on o.NumericID
// when set, else o.Handle. attempts is incremented on every call
// against an existing row and seeded at 1 for a brand new one; use
// ResetAttempts to force it back down instead.
func (s *Store) RecordOutcome(ctx context.Context, o domain.Outcome) error {
	if o.NumericID == "" && o.Handle == "" {
		return &domain.PersistenceError{Op: "record_outcome", Err: fmt.Errorf("outcome has neither numeric_id nor handle")}
	}

	var httpStatus sql.NullInt64
	if o.HTTPStatus != nil {
		httpStatus = sql.NullInt64{Int64: int64(*o.HTTPStatus), Valid: true}
	}

	conflictCol := "handle"
	if o.NumericID != "" {
		conflictCol = "numeric_id"
	}

	query := fmt.Sprintf(`
INSERT INTO outcomes (
    numeric_id, handle, display_name, status, user_state, error_kind,
    error_sample, http_status, skip_reason, attempts, session_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(%s) DO UPDATE SET
    numeric_id   = COALESCE(excluded.numeric_id, outcomes.numeric_id),
    handle       = COALESCE(excluded.handle, outcomes.handle),
    display_name = excluded.display_name,
    status       = excluded.status,
    user_state   = excluded.user_state,
    error_kind   = excluded.error_kind,
    error_sample = excluded.error_sample,
    http_status  = excluded.http_status,
    skip_reason  = excluded.skip_reason,
    attempts     = outcomes.attempts + 1,
    last_updated = strftime('%%s','now') * 1000,
    session_id   = excluded.session_id
`, conflictCol)

	nullableNumericID := sql.NullString{String: o.NumericID, Valid: o.NumericID != ""}
	nullableHandle := sql.NullString{String: o.Handle, Valid: o.Handle != ""}

	if _, err := s.db.ExecContext(ctx, query,
		nullableNumericID, nullableHandle, o.DisplayName, string(o.Status), string(o.UserState),
		string(o.ErrorKind), o.ErrorSample, httpStatus, string(o.SkipReason), o.SessionID,
	); err != nil {
		return &domain.PersistenceError{Op: "record_outcome", Err: err}
	}
	return nil
}

// GetPermanentFailures returns every outcome whose status is failed and
// whose user-state will not change on retry. keys, when non-empty,
// scopes the query to those numeric ids/handles only (chunked IN (...)
// at chunkSize, same as ResetAttempts) instead of scanning the whole
// table; pass nil for an unscoped, whole-table read (used by stats
// reporting, which has no batch to scope to).
func (s *Store) GetPermanentFailures(ctx context.Context, keys []string) ([]domain.Outcome, error) {
	const base = `
SELECT numeric_id, handle, display_name, status, user_state, error_kind,
       error_sample, http_status, skip_reason, attempts, first_seen, last_updated, session_id
FROM outcomes
WHERE status = 'failed' AND user_state IN ('suspended', 'not_found', 'deactivated')`
	out, err := s.queryOutcomesScoped(ctx, base, "ORDER BY last_updated DESC", keys)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get_permanent_failures", Err: err}
	}
	return out, nil
}

// GetSuccessful returns every outcome recorded as a successful block.
// keys scopes the query the same way GetPermanentFailures does.
func (s *Store) GetSuccessful(ctx context.Context, keys []string) ([]domain.Outcome, error) {
	const base = `
SELECT numeric_id, handle, display_name, status, user_state, error_kind,
       error_sample, http_status, skip_reason, attempts, first_seen, last_updated, session_id
FROM outcomes
WHERE status = 'success'`
	out, err := s.queryOutcomesScoped(ctx, base, "ORDER BY last_updated DESC", keys)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get_successful", Err: err}
	}
	return out, nil
}

// queryOutcomesScoped runs base (a WHERE clause with no trailing
// ORDER BY), optionally narrowed to rows matching keys by numeric_id or
// handle, chunking the IN (...) clause at chunkSize and merging results
// across chunks. An empty keys runs base unscoped.
func (s *Store) queryOutcomesScoped(ctx context.Context, base, orderBy string, keys []string) ([]domain.Outcome, error) {
	if len(keys) == 0 {
		rows, err := s.db.QueryContext(ctx, base+"\n"+orderBy)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanOutcomes(rows)
	}

	var out []domain.Outcome
	for _, chunk := range chunkStrings(keys, chunkSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := fmt.Sprintf("%s AND (numeric_id IN (%s) OR handle IN (%s))\n%s", base, placeholders, placeholders, orderBy)

		args := make([]any, 0, len(chunk)*2)
		for _, k := range chunk {
			args = append(args, k)
		}
		for _, k := range chunk {
			args = append(args, k)
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		chunkOut, err := scanOutcomes(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, chunkOut...)
	}
	return out, nil
}

// ListRetryCandidates returns every outcome eligible for the auto-retry
// pass: a transient failure under the attempt ceiling.
func (s *Store) ListRetryCandidates(ctx context.Context, ceiling int) ([]domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT numeric_id, handle, display_name, status, user_state, error_kind,
       error_sample, http_status, skip_reason, attempts, first_seen, last_updated, session_id
FROM outcomes
WHERE status = 'failed'
  AND user_state NOT IN ('suspended', 'not_found', 'deactivated')
  AND attempts < ?
ORDER BY last_updated ASC
`, ceiling)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list_retry_candidates", Err: err}
	}
	defer rows.Close()
	return scanOutcomes(rows)
}

// ResetAttempts forces the attempts counter to value for every key in
// keys (numeric id or handle), chunking the IN (...) clause at
// chunkSize. Used by `blockctl reset-retry-counts`.
func (s *Store) ResetAttempts(ctx context.Context, keys []string, value int) error {
	for _, chunk := range chunkStrings(keys, chunkSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := fmt.Sprintf(`
UPDATE outcomes SET attempts = ?, last_updated = strftime('%%s','now') * 1000
WHERE numeric_id IN (%s) OR handle IN (%s)
`, placeholders, placeholders)

		args := make([]any, 0, len(chunk)*2+1)
		args = append(args, value)
		for _, k := range chunk {
			args = append(args, k)
		}
		for _, k := range chunk {
			args = append(args, k)
		}

		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return &domain.PersistenceError{Op: "reset_attempts", Err: err}
		}
	}
	return nil
}

// Stats summarizes the outcomes table for `blockctl print-stats`.
type Stats struct {
	Total            int
	Success          int
	Skipped          int
	PermanentFailure int
	TransientFailure int
	TotalAttempts    int
}

// Stats computes the aggregate view of the outcomes table. One pass,
// grouped in SQL rather than loaded row-by-row into Go.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
SELECT
    COUNT(*),
    COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'failed' AND user_state IN ('suspended','not_found','deactivated') THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'failed' AND user_state NOT IN ('suspended','not_found','deactivated') THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(attempts), 0)
FROM outcomes
`)
	if err := row.Scan(&st.Total, &st.Success, &st.Skipped, &st.PermanentFailure, &st.TransientFailure, &st.TotalAttempts); err != nil {
		return Stats{}, &domain.PersistenceError{Op: "stats", Err: err}
	}
	return st, nil
}

func scanOutcomes(rows *sql.Rows) ([]domain.Outcome, error) {
	var out []domain.Outcome
	for rows.Next() {
		var (
			o          domain.Outcome
			numericID  sql.NullString
			handle     sql.NullString
			httpStatus sql.NullInt64
			firstSeen  int64
			lastUpd    int64
		)
		if err := rows.Scan(
			&numericID, &handle, &o.DisplayName, &o.Status, &o.UserState, &o.ErrorKind,
			&o.ErrorSample, &httpStatus, &o.SkipReason, &o.Attempts, &firstSeen, &lastUpd, &o.SessionID,
		); err != nil {
			return nil, &domain.PersistenceError{Op: "scan_outcome", Err: err}
		}
		o.NumericID = numericID.String
		o.Handle = handle.String
		if httpStatus.Valid {
			v := int(httpStatus.Int64)
			o.HTTPStatus = &v
		}
		o.FirstSeen = time.UnixMilli(firstSeen)
		o.LastUpdated = time.UnixMilli(lastUpd)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "scan_outcome", Err: err}
	}
	return out, nil
}

func chunkStrings(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
