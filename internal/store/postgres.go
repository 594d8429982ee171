package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/activity-merge/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	applyPoolConfig(pgxCfg, poolCfg)

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// applyPoolConfig sizes the pool. Zero values keep the defaults.
func applyPoolConfig(pgxCfg *pgxpool.Config, poolCfg *PoolConfig) {
	// A merge is one short-lived writer.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS merge_runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_path    TEXT NOT NULL,
	canonical_path TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	dry_run        BOOLEAN NOT NULL DEFAULT false,
	backup_path    TEXT NOT NULL DEFAULT '',
	result         JSONB,
	error          TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_merge_runs_status ON merge_runs(status);
CREATE INDEX IF NOT EXISTS idx_merge_runs_started_at ON merge_runs(started_at DESC);
`

const postgresRunColumns = `id, source_path, canonical_path, status, dry_run, backup_path, result, error, started_at, completed_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, sourcePath, canonicalPath string, dryRun bool) (*model.MergeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO merge_runs (id, source_path, canonical_path, status, dry_run, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sourcePath, canonicalPath, string(model.RunStatusRunning), dryRun, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.MergeRun{
		ID:            id,
		SourcePath:    sourcePath,
		CanonicalPath: canonicalPath,
		Status:        model.RunStatusRunning,
		DryRun:        dryRun,
		StartedAt:     now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID, backupPath string, result *model.MergeResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE merge_runs SET status = $1, backup_path = $2, result = $3, completed_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), backupPath, resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE merge_runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.MergeRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM merge_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run %s: run not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MergeRun, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM merge_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.MergeRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*RunStats, error) {
	st := newRunStats()

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM merge_runs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count runs")
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan run count")
		}
		st.ByStatus[model.RunStatus(status)] = int(n)
		st.Total += int(n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: count runs iterate")
	}

	results, err := s.pool.Query(ctx,
		`SELECT result FROM merge_runs WHERE status = $1 AND NOT dry_run AND result IS NOT NULL`,
		string(model.RunStatusComplete),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sum results")
	}
	defer results.Close()
	for results.Next() {
		var resultJSON []byte
		if err := results.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		if err := st.addResult(resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: stats")
		}
	}
	return st, eris.Wrap(results.Err(), "postgres: sum results iterate")
}

func scanPgRun(row pgx.Row) (*model.MergeRun, error) {
	var r model.MergeRun
	var status string
	var resultNull *[]byte

	err := row.Scan(&r.ID, &r.SourcePath, &r.CanonicalPath, &status, &r.DryRun,
		&r.BackupPath, &resultNull, &r.Error, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	if resultNull != nil {
		r.Result = &model.MergeResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
