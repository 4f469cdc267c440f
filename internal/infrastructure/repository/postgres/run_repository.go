package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO runs (id, status, preset, document_count, group_count, archive_key, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		run.ID, string(run.Status), string(run.Preset), run.DocumentCount, run.GroupCount,
		run.ArchiveKey, run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, preset, document_count, group_count, archive_key, report, error_message, created_at, updated_at
FROM runs
WHERE id = $1
`, id)

	var run domain.Run
	var status, preset string
	var reportRaw []byte
	err := row.Scan(
		&run.ID, &status, &preset, &run.DocumentCount, &run.GroupCount,
		&run.ArchiveKey, &reportRaw, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get run by id", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if len(reportRaw) > 0 {
		var report domain.RunReport
		if err := json.Unmarshal(reportRaw, &report); err != nil {
			return nil, fmt.Errorf("unmarshal run report: %w", err)
		}
		run.Report = &report
	}
	run.Status = domain.RunStatus(status)
	run.Preset = domain.ClusterPreset(preset)
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE runs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireRow(result, "update run status", id)
}

func (r *RunRepository) SaveResult(ctx context.Context, id string, res domain.RunResult) error {
	reportJSON, err := json.Marshal(res.Report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE runs
SET status = $2, document_count = $3, group_count = $4, archive_key = $5, report = $6, error_message = '', updated_at = $7
WHERE id = $1
`, id, string(domain.RunReady), res.DocumentCount, res.GroupCount, res.ArchiveKey, reportJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save run result: %w", err)
	}
	return requireRow(result, "save run result", id)
}

func requireRow(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrRunNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
