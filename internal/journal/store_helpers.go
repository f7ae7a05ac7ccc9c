package journal

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const jobColumns = "id, correlation_id, workspace, operation, region, state, endpoint, progress_percent, progress_message, error_message, created_at, updated_at"

const reportColumns = "id, job_id, workspace, event, progress, message, error_message, sent_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job             Job
		stateStr        string
		region          sql.NullString
		endpoint        sql.NullString
		progressMessage sql.NullString
		errorMessage    sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.CorrelationID,
		&job.Workspace,
		&job.Operation,
		&region,
		&stateStr,
		&endpoint,
		&job.ProgressPercent,
		&progressMessage,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.State = State(stateStr)
	job.Region = region.String
	job.Endpoint = endpoint.String
	job.ProgressMessage = progressMessage.String
	job.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

func scanReport(scanner interface{ Scan(dest ...any) error }) (*Report, error) {
	var (
		report       Report
		jobID        sql.NullInt64
		message      sql.NullString
		errorMessage sql.NullString
		sentRaw      string
	)
	if err := scanner.Scan(
		&report.ID,
		&jobID,
		&report.Workspace,
		&report.Event,
		&report.Progress,
		&message,
		&errorMessage,
		&sentRaw,
	); err != nil {
		return nil, err
	}
	report.JobID = jobID.Int64
	report.Message = message.String
	report.Error = errorMessage.String
	if sent, err := parseTimeString(sentRaw); err == nil {
		report.SentAt = sent
	}
	return &report, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
