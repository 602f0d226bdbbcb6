package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
)

// InsertJob persists a new job. A unique violation on either the primary
// key or the active dedupe index maps to ErrDuplicateJob.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	m, err := toJobModel(j)
	if err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", innosupps.ErrDuplicateJob, j.Payload.DedupeKey)
		}
		return fmt.Errorf("innosupps/bun: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).Where("id = ?", jobID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrJobNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// FindActiveJob returns the active job holding dedupeKey in the workspace.
func (s *Store) FindActiveJob(ctx context.Context, workspaceID, dedupeKey string) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("workspace_id = ?", workspaceID).
		Where("dedupe_key = ?", dedupeKey).
		Where("status IN (?)", bun.In(activeStates())).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrJobNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: find active job: %w", err)
	}
	return fromJobModel(m)
}

func activeStates() []string {
	out := make([]string, 0, len(job.ActiveStates))
	for _, st := range job.ActiveStates {
		out = append(out, string(st))
	}
	return out
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

func (s *Store) updateJob(ctx context.Context, j *job.Job, from job.State) (int64, error) {
	m, err := toJobModel(j)
	if err != nil {
		return 0, err
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}

	q := s.db.NewUpdate().Model(m).
		Column("queue", "status", "attempts", "retries", "max_retries", "timeout",
			"last_error", "result", "run_at", "started_at", "finished_at",
			"heartbeat_at", "updated_at").
		WherePK()
	if from != "" {
		q = q.Where("status = ?", string(from))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, fmt.Errorf("%w: %s", innosupps.ErrDuplicateJob, j.Payload.DedupeKey)
		}
		return 0, fmt.Errorf("innosupps/bun: update job: %w", err)
	}
	return rowsAffected(res), nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.NewDelete().Model((*jobModel)(nil)).Where("id = ?", jobID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("innosupps/bun: delete job: %w", err)
	}
	if rowsAffected(res) == 0 {
		return innosupps.ErrJobNotFound
	}
	return nil
}

// ListJobsByWorkspace returns the workspace's jobs, newest first.
func (s *Store) ListJobsByWorkspace(ctx context.Context, workspaceID string, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("workspace_id = ?", workspaceID).
		OrderExpr("created_at DESC")
	s.applyListOpts(q, opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("innosupps/bun: list jobs by workspace: %w", err)
	}
	return convertJobs(models)
}

// ListJobsByState returns jobs matching the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("status = ?", string(state)).
		OrderExpr("created_at ASC")
	s.applyListOpts(q, opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("innosupps/bun: list jobs by state: %w", err)
	}
	return convertJobs(models)
}

func (s *Store) applyListOpts(q *bun.SelectQuery, opts job.ListOpts) {
	if opts.Queue != "" {
		q.Where("queue = ?", opts.Queue)
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit == 0 && s.db.Dialect().Name() == dialect.SQLite {
			// SQLite requires a LIMIT before OFFSET.
			q.Limit(-1)
		}
		q.Offset(opts.Offset)
	}
}

// HeartbeatJob updates the heartbeat timestamp for a job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().Model((*jobModel)(nil)).
		Set("heartbeat_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("innosupps/bun: heartbeat job: %w", err)
	}
	if rowsAffected(res) == 0 {
		return innosupps.ErrJobNotFound
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("status = ?", string(job.StateRunning)).
		Where("heartbeat_at IS NOT NULL").
		Where("heartbeat_at < ?", time.Now().UTC().Add(-threshold)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: reap stale jobs: %w", err)
	}
	return convertJobs(models)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := s.db.NewSelect().Model((*jobModel)(nil))
	if opts.WorkspaceID != "" {
		q = q.Where("workspace_id = ?", opts.WorkspaceID)
	}
	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}
	if opts.State != "" {
		q = q.Where("status = ?", string(opts.State))
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("innosupps/bun: count jobs: %w", err)
	}
	return int64(count), nil
}

func convertJobs(models []jobModel) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
