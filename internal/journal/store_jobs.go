package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewJob records a freshly claimed workspace.
func (s *Store) NewJob(ctx context.Context, correlationID, workspace, operation, region string) (*Job, error) {
	if strings.TrimSpace(workspace) == "" {
		return nil, errors.New("workspace is required")
	}
	timestamp := now()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            correlation_id, workspace, operation, region, state,
            progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		correlationID,
		workspace,
		operation,
		nullableString(region),
		StateClaimed,
		0.0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET state = ?, endpoint = ?, progress_percent = ?, progress_message = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.State,
		nullableString(job.Endpoint),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by state (or all jobs when no state is provided),
// newest first. A positive limit caps the result.
func (s *Store) List(ctx context.Context, limit int, states ...State) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(states)+1)
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// FailInterrupted marks jobs left claimed or running by a previous worker
// process as failed. The account service reassigns them on its own.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, error_message = ?, updated_at = ?
         WHERE state IN (?, ?)`,
		StateFailed,
		WorkerStopReason,
		now(),
		StateClaimed,
		StateRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearFinished removes jobs in terminal states along with their reports.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE state IN (?, ?, ?)`, StateCompleted, StateFailed, StateRejected)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}
