package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Job run statuses as stored in blog_job_runs.
const (
	JobSuccess = "success"
	JobFailed  = "failed"
	JobSkipped = "skipped"
)

const lockPrefix = "scheduler:lock:"

// releaseLock deletes the lock only if this replica still owns it.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Job is one recurring task. Run returns a short human readable detail.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (string, error)
}

// LockClient is the Redis surface used for the cross-replica job lock.
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Scheduler runs jobs when their interval has elapsed since the last
// recorded run. Last runs live in the database so cadence survives restarts.
type Scheduler struct {
	runs    domain.JobRunRepository
	jobs    []Job
	lock    LockClient
	lockTTL time.Duration
	tick    time.Duration
	now     func() time.Time

	// one job at a time within a replica; the Redis lock covers other replicas
	slot chan struct{}
}

type SchedulerOption func(*Scheduler)

// WithLock guards each job run with a Redis SET NX PX lock.
func WithLock(c LockClient, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.lock = c
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(runs domain.JobRunRepository, jobs []Job, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runs:    runs,
		jobs:    jobs,
		lockTTL: 30 * time.Minute,
		tick:    time.Minute,
		now:     time.Now,
		slot:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Jobs returns the configured jobs.
func (s *Scheduler) Jobs() []Job { return append([]Job(nil), s.jobs...) }

func (s *Scheduler) lastRuns(ctx context.Context) (map[string]domain.JobRun, error) {
	runs, err := s.runs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=scheduler.last_runs: %w", err)
	}
	out := make(map[string]domain.JobRun, len(runs))
	for _, r := range runs {
		out[r.Name] = r
	}
	return out, nil
}

func isDue(j Job, run domain.JobRun, seen bool, now time.Time) bool {
	return !seen || !run.LastRunAt.Add(j.Interval).After(now)
}

// Due lists jobs never run or whose last run plus interval is at or before now.
func (s *Scheduler) Due(ctx context.Context, now time.Time) ([]Job, error) {
	last, err := s.lastRuns(ctx)
	if err != nil {
		return nil, err
	}
	var due []Job
	for _, j := range s.jobs {
		run, seen := last[j.Name]
		if isDue(j, run, seen, now) {
			due = append(due, j)
		}
	}
	return due, nil
}

// RunDue runs every due job in order.
func (s *Scheduler) RunDue(ctx context.Context) ([]domain.JobResult, error) {
	return s.RunAll(ctx, false)
}

// RunAll runs all jobs when force is set, otherwise only due ones.
func (s *Scheduler) RunAll(ctx context.Context, force bool) ([]domain.JobResult, error) {
	jobs := s.Jobs()
	if !force {
		var err error
		if jobs, err = s.Due(ctx, s.now()); err != nil {
			return nil, err
		}
	}
	results := make([]domain.JobResult, 0, len(jobs))
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.runOne(ctx, j, force))
	}
	return results, nil
}

// RunJob runs the named job now regardless of its schedule.
func (s *Scheduler) RunJob(ctx context.Context, name string) (domain.JobResult, error) {
	for _, j := range s.jobs {
		if j.Name == name {
			return s.runOne(ctx, j, true), nil
		}
	}
	return domain.JobResult{}, fmt.Errorf("op=scheduler.run_job: %w: unknown job %q", domain.ErrNotFound, name)
}

func (s *Scheduler) acquire(ctx context.Context, name string) (string, bool, error) {
	if s.lock == nil {
		return "", true, nil
	}
	token := ulid.Make().String()
	ok, err := s.lock.SetNX(ctx, lockPrefix+name, token, s.lockTTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (s *Scheduler) release(ctx context.Context, name, token string) {
	if s.lock == nil || token == "" {
		return
	}
	if err := releaseLock.Run(ctx, s.lock, []string{lockPrefix + name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		observability.LoggerFromContext(ctx).Warn("release job lock failed", slog.String("job", name), slog.Any("error", err))
	}
}

// stillDue re-reads the last run once the job is held, so a caller that
// listed the job before another run finished does not repeat it.
func (s *Scheduler) stillDue(ctx context.Context, j Job) (bool, error) {
	run, err := s.runs.Get(ctx, j.Name)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("op=scheduler.still_due: %w", err)
	}
	return isDue(j, run, true, s.now()), nil
}

func (s *Scheduler) runOne(ctx context.Context, j Job, force bool) domain.JobResult {
	select {
	case s.slot <- struct{}{}:
		defer func() { <-s.slot }()
	case <-ctx.Done():
		return domain.JobResult{Name: j.Name, Status: JobSkipped, Error: ctx.Err().Error()}
	}

	tracer := otel.Tracer("app.scheduler")
	ctx, span := tracer.Start(ctx, "Scheduler.runJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.name", j.Name))
	lg := observability.LoggerFromContext(ctx).With(slog.String("job", j.Name))

	token, ok, err := s.acquire(ctx, j.Name)
	if err != nil {
		// without Redis the job still runs; a second replica may duplicate it
		lg.Warn("job lock unavailable, running unguarded", slog.Any("error", err))
		ok = true
	}
	if !ok {
		lg.Info("job skipped, locked by another replica")
		observability.ObserveSchedulerRun(j.Name, JobSkipped)
		span.SetAttributes(attribute.String("job.status", JobSkipped))
		return domain.JobResult{Name: j.Name, Status: JobSkipped}
	}
	defer s.release(context.WithoutCancel(ctx), j.Name, token)

	if !force {
		due, err := s.stillDue(ctx, j)
		if err != nil {
			lg.Warn("job due check failed, skipping", slog.Any("error", err))
			span.RecordError(err)
		}
		if !due {
			lg.Debug("job skipped, already ran")
			observability.ObserveSchedulerRun(j.Name, JobSkipped)
			span.SetAttributes(attribute.String("job.status", JobSkipped))
			return domain.JobResult{Name: j.Name, Status: JobSkipped}
		}
	}

	start := s.now()
	detail, runErr := j.Run(ctx)
	res := domain.JobResult{Name: j.Name, Status: JobSuccess, Detail: detail, Duration: s.now().Sub(start)}
	if runErr != nil {
		res.Status = JobFailed
		res.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		lg.Error("job failed", slog.Any("error", runErr), slog.Duration("duration", res.Duration))
	} else {
		lg.Info("job finished", slog.String("detail", detail), slog.Duration("duration", res.Duration))
	}
	span.SetAttributes(attribute.String("job.status", res.Status))
	observability.ObserveSchedulerRun(j.Name, res.Status)

	rec := domain.JobRun{
		Name:         j.Name,
		LastRunAt:    start,
		LastStatus:   res.Status,
		LastError:    res.Error,
		LastDuration: res.Duration,
	}
	if err := s.runs.Record(context.WithoutCancel(ctx), rec); err != nil {
		lg.Error("record job run failed", slog.Any("error", err))
	}
	return res
}

// Status reports every job with its last run and next due time.
func (s *Scheduler) Status(ctx context.Context) ([]domain.JobStatus, error) {
	last, err := s.lastRuns(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := domain.JobStatus{Name: j.Name, Interval: j.Interval.String(), NextRunAt: now}
		if run, ok := last[j.Name]; ok {
			at := run.LastRunAt
			st.LastRunAt = &at
			st.LastStatus = run.LastStatus
			st.LastError = run.LastError
			st.LastDuration = run.LastDuration.String()
			st.RunCount = run.RunCount
			st.NextRunAt = at.Add(j.Interval)
			st.Due = isDue(j, run, true, now)
		} else {
			st.Due = true
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].NextRunAt.Before(out[k].NextRunAt) })
	return out, nil
}

// Run checks for due jobs immediately and then on every tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil || len(s.jobs) == 0 {
		return
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.runDueOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.runDueOnce(ctx)
		}
	}
}

func (s *Scheduler) runDueOnce(ctx context.Context) {
	if _, err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scheduler tick failed", slog.Any("error", err))
	}
}
