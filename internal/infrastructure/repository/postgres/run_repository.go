// Package postgres stores the usage ledger. Rows carry run metadata only, never file content.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const schemaLockID int64 = 2026031801

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	file_kind TEXT NOT NULL DEFAULT '',
	task TEXT NOT NULL,
	task_kind TEXT NOT NULL,
	model TEXT NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_batch ON analysis_runs(batch_id);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_recorded_at ON analysis_runs(recorded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Record inserts a run record. Redelivered records with a known id are ignored.
func (r *RunRepository) Record(ctx context.Context, record domain.RunRecord) error {
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.BatchID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record run", errors.New("run and batch id are required"))
	}
	recordedAt := record.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO analysis_runs (
	id, batch_id, filename, file_kind, task, task_kind, model, status, error_kind,
	prompt_tokens, completion_tokens, total_tokens, duration_ms, recorded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO NOTHING
`,
		record.ID, record.BatchID, record.Filename, string(record.FileKind), record.Task, string(record.TaskKind),
		record.Model, string(record.Status), string(record.ErrorKind),
		record.Usage.Prompt, record.Usage.Completion, record.Usage.Total,
		record.Duration.Milliseconds(), recordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}
	return nil
}

func (r *RunRepository) ListByBatch(ctx context.Context, batchID string) ([]domain.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, filename, file_kind, task, task_kind, model, status, error_kind,
	prompt_tokens, completion_tokens, total_tokens, duration_ms, recorded_at
FROM analysis_runs
WHERE batch_id = $1
ORDER BY recorded_at ASC, id ASC
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query analysis runs: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RunRecord, 0)
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis runs: %w", err)
	}
	return records, nil
}

type runScanner interface {
	Scan(dest ...any) error
}

func scanRun(row runScanner) (domain.RunRecord, error) {
	var (
		record                              domain.RunRecord
		fileKind, taskKind, status, errKind string
		durationMS                          int64
	)
	err := row.Scan(
		&record.ID, &record.BatchID, &record.Filename, &fileKind, &record.Task, &taskKind, &record.Model,
		&status, &errKind, &record.Usage.Prompt, &record.Usage.Completion, &record.Usage.Total,
		&durationMS, &record.RecordedAt,
	)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("scan analysis run: %w", err)
	}
	record.FileKind = domain.FileKind(fileKind)
	record.TaskKind = domain.TaskKind(taskKind)
	record.Status = domain.RunStatus(status)
	record.ErrorKind = domain.ErrorKind(errKind)
	record.Duration = time.Duration(durationMS) * time.Millisecond
	return record, nil
}
