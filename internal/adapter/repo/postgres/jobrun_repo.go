package postgres

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// JobRunRepo persists the last run of each scheduled job.
type JobRunRepo struct{ Pool PgxPool }

// NewJobRunRepo constructs a JobRunRepo with the given pool.
func NewJobRunRepo(p PgxPool) *JobRunRepo { return &JobRunRepo{Pool: p} }

const jobRunColumns = `name, last_run_at, last_status, last_error, last_duration_ms, run_count`

type jobRunScanner interface{ Scan(dest ...any) error }

func scanJobRun(row jobRunScanner) (domain.JobRun, error) {
	var j domain.JobRun
	var ms int64
	if err := row.Scan(&j.Name, &j.LastRunAt, &j.LastStatus, &j.LastError, &ms, &j.RunCount); err != nil {
		return domain.JobRun{}, err
	}
	j.LastDuration = time.Duration(ms) * time.Millisecond
	return j, nil
}

func (r *JobRunRepo) Get(ctx domain.Context, name string) (domain.JobRun, error) {
	ctx, span := startSpan(ctx, "repo.job_runs", "job_runs.Get", "SELECT", "blog_job_runs")
	defer span.End()
	j, err := scanJobRun(r.Pool.QueryRow(ctx, `SELECT `+jobRunColumns+` FROM blog_job_runs WHERE name=$1`, name))
	if err != nil {
		return domain.JobRun{}, mapError("job_run.get", err)
	}
	return j, nil
}

func (r *JobRunRepo) List(ctx domain.Context) ([]domain.JobRun, error) {
	ctx, span := startSpan(ctx, "repo.job_runs", "job_runs.List", "SELECT", "blog_job_runs")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+jobRunColumns+` FROM blog_job_runs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("op=job_run.list: %w", err)
	}
	defer rows.Close()
	out := []domain.JobRun{}
	for rows.Next() {
		j, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job_run.list: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Record upserts the run and increments its run counter.
func (r *JobRunRepo) Record(ctx domain.Context, run domain.JobRun) error {
	ctx, span := startSpan(ctx, "repo.job_runs", "job_runs.Record", "UPSERT", "blog_job_runs")
	defer span.End()
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO blog_job_runs (name, last_run_at, last_status, last_error, last_duration_ms, run_count)
		 VALUES ($1,$2,$3,$4,$5,1)
		 ON CONFLICT (name) DO UPDATE SET
		   last_run_at = EXCLUDED.last_run_at,
		   last_status = EXCLUDED.last_status,
		   last_error = EXCLUDED.last_error,
		   last_duration_ms = EXCLUDED.last_duration_ms,
		   run_count = blog_job_runs.run_count + 1`,
		run.Name, run.LastRunAt.UTC(), run.LastStatus, run.LastError, run.LastDuration.Milliseconds())
	if err != nil {
		return fmt.Errorf("op=job_run.record: %w", err)
	}
	return nil
}
