// internal/repository/cycle_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/replenish/internal/domain"
)

// CycleRepository tracks rolling-horizon cycle executions.
type CycleRepository interface {
	CreateCycleRun(ctx context.Context, run *domain.CycleRun) error
	UpdateCycleRun(ctx context.Context, run *domain.CycleRun) error
	GetLatestCycleRun(ctx context.Context) (*domain.CycleRun, error)
	GetCycleRunByDate(ctx context.Context, date string) (*domain.CycleRun, error)
}

type cycleRepository struct {
	db *sqlx.DB
}

func NewCycleRepository(db *sqlx.DB) CycleRepository {
	return &cycleRepository{db: db}
}

func (r *cycleRepository) CreateCycleRun(ctx context.Context, run *domain.CycleRun) error {
	query := `
		INSERT INTO cycle_runs (
			cycle_date, status, total_partitions, persisted_partitions,
			failed_partitions, started_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_date)
		DO UPDATE SET
			status = EXCLUDED.status,
			total_partitions = EXCLUDED.total_partitions,
			started_at = EXCLUDED.started_at,
			error_message = ''
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query,
		run.CycleDate, run.Status, run.TotalPartitions, run.PersistedPartitions,
		run.FailedPartitions, run.StartedAt, run.ErrorMessage,
	).Scan(&run.ID); err != nil {
		return fmt.Errorf("error creating cycle run: %w", err)
	}

	return nil
}

func (r *cycleRepository) UpdateCycleRun(ctx context.Context, run *domain.CycleRun) error {
	query := `
		UPDATE cycle_runs
		SET status = $2,
			persisted_partitions = $3,
			failed_partitions = $4,
			completed_at = $5,
			error_message = $6
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query,
		run.ID, run.Status, run.PersistedPartitions, run.FailedPartitions,
		run.CompletedAt, run.ErrorMessage,
	); err != nil {
		return fmt.Errorf("error updating cycle run: %w", err)
	}

	return nil
}

func (r *cycleRepository) GetLatestCycleRun(ctx context.Context) (*domain.CycleRun, error) {
	query := `
		SELECT id, cycle_date, status, total_partitions, persisted_partitions,
			failed_partitions, started_at, completed_at, error_message
		FROM cycle_runs
		ORDER BY cycle_date DESC
		LIMIT 1
	`

	var run domain.CycleRun
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting latest cycle run: %w", err)
	}

	return &run, nil
}

func (r *cycleRepository) GetCycleRunByDate(ctx context.Context, date string) (*domain.CycleRun, error) {
	query := `
		SELECT id, cycle_date, status, total_partitions, persisted_partitions,
			failed_partitions, started_at, completed_at, error_message
		FROM cycle_runs
		WHERE cycle_date = $1::date
	`

	var run domain.CycleRun
	if err := r.db.GetContext(ctx, &run, query, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting cycle run: %w", err)
	}

	return &run, nil
}
