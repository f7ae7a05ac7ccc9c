package journal

import (
	"context"
	"fmt"
	"time"
)

// RecordReport stores a lifecycle report. A zero JobID records a report that
// is not tied to a claimed job, such as an idle ping.
func (s *Store) RecordReport(ctx context.Context, report Report) error {
	sentAt := report.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO reports (job_id, workspace, event, progress, message, error_message, sent_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableID(report.JobID),
		report.Workspace,
		report.Event,
		report.Progress,
		nullableString(report.Message),
		nullableString(report.Error),
		sentAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Reports returns the reports recorded for a job in the order they were sent.
func (s *Store) Reports(ctx context.Context, jobID int64) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
