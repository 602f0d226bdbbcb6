package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
)

const jobColumns = `
	id, workspace_id, type, queue, payload, status,
	attempts, retries, max_retries, timeout, last_error, result,
	run_at, started_at, finished_at, heartbeat_at, created_at, updated_at`

// InsertJob persists a new job. A unique violation on either the primary
// key or the active dedupe index maps to ErrDuplicateJob.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: encode payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, workspace_id, type, queue, payload, dedupe_key, status,
			attempts, retries, max_retries, timeout, last_error, result,
			run_at, started_at, finished_at, heartbeat_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19
		)`,
		j.ID.String(), j.WorkspaceID, j.Type, j.Queue, payload, j.Payload.DedupeKey, string(j.State),
		j.Attempts, j.Retries, j.MaxRetries, j.Timeout.Nanoseconds(), j.LastError, jsonb(j.Result),
		j.RunAt, j.StartedAt, j.FinishedAt, j.HeartbeatAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", innosupps.ErrDuplicateJob, j.Payload.DedupeKey)
		}
		return fmt.Errorf("innosupps/postgres: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = $1`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrJobNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: get job: %w", err)
	}
	return j, nil
}

// FindActiveJob returns the active job holding dedupeKey in the workspace.
func (s *Store) FindActiveJob(ctx context.Context, workspaceID, dedupeKey string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+jobColumns+`
		FROM jobs
		WHERE workspace_id = $1
		  AND dedupe_key = $2
		  AND status IN ('queued', 'running', 'cancelling')`,
		workspaceID, dedupeKey,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrJobNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: find active job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job. The payload and dedupe
// key are immutable once inserted.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	n, err := s.updateJob(ctx, j, "")
	if err != nil {
		return err
	}
	if n == 0 {
		return innosupps.ErrJobNotFound
	}
	return nil
}

// UpdateJobFrom persists j only if the stored status equals from.
func (s *Store) UpdateJobFrom(ctx context.Context, j *job.Job, from job.State) error {
	n, err := s.updateJob(ctx, j, from)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	cur, err := s.GetJob(ctx, j.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s, not %s", innosupps.ErrInvalidState, j.ID, cur.State, from)
}

// updateJob writes every mutable column. A non-empty from adds a status
// guard.
func (s *Store) updateJob(ctx context.Context, j *job.Job, from job.State) (int64, error) {
	query := `
		UPDATE jobs SET
			queue = $2, status = $3, attempts = $4, retries = $5,
			max_retries = $6, timeout = $7, last_error = $8, result = $9,
			run_at = $10, started_at = $11, finished_at = $12, heartbeat_at = $13,
			updated_at = $14
		WHERE id = $1`
	args := []any{
		j.ID.String(), j.Queue, string(j.State), j.Attempts, j.Retries,
		j.MaxRetries, j.Timeout.Nanoseconds(), j.LastError, jsonb(j.Result),
		j.RunAt, j.StartedAt, j.FinishedAt, j.HeartbeatAt, updatedAt(j),
	}
	if from != "" {
		query += ` AND status = $15`
		args = append(args, string(from))
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, fmt.Errorf("%w: %s", innosupps.ErrDuplicateJob, j.Payload.DedupeKey)
		}
		return 0, fmt.Errorf("innosupps/postgres: update job: %w", err)
	}
	return tag.RowsAffected(), nil
}

// updatedAt keeps the caller's Touch time, which follows the engine clock.
func updatedAt(j *job.Job) time.Time {
	if j.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return j.UpdatedAt.UTC()
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("innosupps/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return innosupps.ErrJobNotFound
	}
	return nil
}

// ListJobsByWorkspace returns the workspace's jobs, newest first.
func (s *Store) ListJobsByWorkspace(ctx context.Context, workspaceID string, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT` + jobColumns + ` FROM jobs WHERE workspace_id = $1`
	args := []any{workspaceID}
	query, args = appendListOpts(query, args, opts, "created_at DESC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: list jobs by workspace: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsByState returns jobs matching the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT` + jobColumns + ` FROM jobs WHERE status = $1`
	args := []any{string(state)}
	query, args = appendListOpts(query, args, opts, "created_at ASC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func appendListOpts(query string, args []any, opts job.ListOpts, order string) (string, []any) {
	argIdx := len(args) + 1
	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}

	query += " ORDER BY " + order

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// HeartbeatJob updates the heartbeat timestamp for a job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET heartbeat_at = NOW(), updated_at = NOW() WHERE id = $1`,
		jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: heartbeat job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return innosupps.ErrJobNotFound
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := s.pool.Query(ctx, `SELECT`+jobColumns+`
		FROM jobs
		WHERE status = 'running'
		  AND heartbeat_at IS NOT NULL
		  AND heartbeat_at < $1`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: reap stale jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.WorkspaceID != "" {
		query += fmt.Sprintf(" AND workspace_id = $%d", argIdx)
		args = append(args, opts.WorkspaceID)
		argIdx++
	}
	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}
	if opts.State != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.State))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("innosupps/postgres: count jobs: %w", err)
	}
	return count, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		stateStr  string
		payload   []byte
		result    []byte
		timeoutNs int64
	)
	err := row.Scan(
		&idStr, &j.WorkspaceID, &j.Type, &j.Queue, &payload, &stateStr,
		&j.Attempts, &j.Retries, &j.MaxRetries, &timeoutNs, &j.LastError, &result,
		&j.RunAt, &j.StartedAt, &j.FinishedAt, &j.HeartbeatAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: decode payload of %s: %w", idStr, err)
	}
	j.State = job.State(stateStr)
	j.Timeout = time.Duration(timeoutNs)
	if len(result) > 0 {
		j.Result = json.RawMessage(result)
	}

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("innosupps/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("innosupps/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
