package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

type memJobRuns struct {
	mu      sync.Mutex
	runs    map[string]domain.JobRun
	listErr error
}

func newMemJobRuns() *memJobRuns { return &memJobRuns{runs: map[string]domain.JobRun{}} }

func (m *memJobRuns) Get(_ context.Context, name string) (domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[name]
	if !ok {
		return domain.JobRun{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memJobRuns) List(_ context.Context) ([]domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.JobRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memJobRuns) Record(_ context.Context, run domain.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.RunCount = m.runs[run.Name].RunCount + 1
	m.runs[run.Name] = run
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func countingJob(name string, every time.Duration, calls *int32, err error) Job {
	return Job{Name: name, Interval: every, Run: func(context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return "ok", err
	}}
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestScheduler_DueAndRunDue(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: t0}
	runs := newMemJobRuns()
	var a, b int32
	s := NewScheduler(runs, []Job{
		countingJob("hourly", time.Hour, &a, nil),
		countingJob("daily", 24*time.Hour, &b, nil),
	}, WithSchedulerClock(clk.Now))

	due, err := s.Due(ctx, clk.Now())
	require.NoError(t, err)
	assert.Len(t, due, 2, "never-run jobs are due")

	res, err := s.RunDue(ctx)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, JobSuccess, res[0].Status)
	assert.Equal(t, "ok", res[0].Detail)

	clk.Advance(time.Hour - time.Second)
	due, err = s.Due(ctx, clk.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	clk.Advance(time.Second)
	res, err = s.RunDue(ctx)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "hourly", res[0].Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&a))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b))

	rec, err := runs.Get(ctx, "hourly")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.RunCount)
	assert.True(t, rec.LastRunAt.Equal(t0.Add(time.Hour)))
}

func TestScheduler_CadenceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	runs := newMemJobRuns()
	require.NoError(t, runs.Record(ctx, domain.JobRun{Name: "hourly", LastRunAt: t0, LastStatus: JobSuccess}))
	var calls int32
	s := NewScheduler(runs, []Job{countingJob("hourly", time.Hour, &calls, nil)},
		WithSchedulerClock(func() time.Time { return t0.Add(30 * time.Minute) }))

	res, err := s.RunDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestScheduler_RunAllForce(t *testing.T) {
	ctx := context.Background()
	runs := newMemJobRuns()
	var calls int32
	boom := errors.New("boom")
	s := NewScheduler(runs, []Job{
		countingJob("a", time.Hour, &calls, nil),
		countingJob("b", time.Hour, &calls, boom),
	}, WithSchedulerClock(func() time.Time { return t0 }))

	_, err := s.RunAll(ctx, false)
	require.NoError(t, err)
	res, err := s.RunAll(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, res, "nothing due right after a run")

	res, err = s.RunAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, JobFailed, res[1].Status)
	assert.Equal(t, "boom", res[1].Error)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	rec, _ := runs.Get(ctx, "b")
	assert.Equal(t, JobFailed, rec.LastStatus)
	assert.Equal(t, "boom", rec.LastError)
}

func TestScheduler_OverlappingRunsExecuteOnce(t *testing.T) {
	ctx := context.Background()
	runs := newMemJobRuns()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	job := Job{Name: "digest", Interval: time.Hour, Run: func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		return "ok", nil
	}}
	s := NewScheduler(runs, []Job{job}, WithSchedulerClock(func() time.Time { return t0 }))

	var wg sync.WaitGroup
	results := make([][]domain.JobResult, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.RunDue(ctx)
	}()
	<-started

	// the second caller lists the job as due while the first is still running
	due, err := s.Due(ctx, t0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.RunAll(ctx, false)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Len(t, results[0], 1)
	assert.Equal(t, JobSuccess, results[0][0].Status)
	require.Len(t, results[1], 1)
	assert.Equal(t, JobSkipped, results[1][0].Status)

	rec, err := runs.Get(ctx, "digest")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.RunCount)
}

func TestScheduler_WaitingRunHonorsContext(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := Job{Name: "slow", Interval: time.Hour, Run: func(context.Context) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}}
	s := NewScheduler(newMemJobRuns(), []Job{blocking, countingJob("fast", time.Hour, &calls, nil)})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunJob(context.Background(), "slow")
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := s.RunJob(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, JobSkipped, res.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Error)
	assert.Zero(t, atomic.LoadInt32(&calls))

	close(release)
	<-done
}

func TestScheduler_RunJob(t *testing.T) {
	var calls int32
	s := NewScheduler(newMemJobRuns(), []Job{countingJob("a", time.Hour, &calls, nil)})

	res, err := s.RunJob(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, JobSuccess, res.Status)

	_, err = s.RunJob(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_RedisLock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var calls int32
	s := NewScheduler(newMemJobRuns(), []Job{countingJob("a", time.Hour, &calls, nil)},
		WithLock(rdb, time.Minute))

	t.Run("held elsewhere", func(t *testing.T) {
		require.NoError(t, mr.Set(lockPrefix+"a", "other-replica"))
		res, err := s.RunJob(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, JobSkipped, res.Status)
		assert.Zero(t, atomic.LoadInt32(&calls))
		got, _ := mr.Get(lockPrefix + "a")
		assert.Equal(t, "other-replica", got, "a foreign lock is never released")
		mr.Del(lockPrefix + "a")
	})

	t.Run("acquired and released", func(t *testing.T) {
		res, err := s.RunJob(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, JobSuccess, res.Status)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.False(t, mr.Exists(lockPrefix+"a"))
	})

	t.Run("redis down runs unguarded", func(t *testing.T) {
		mr.Close()
		res, err := s.RunJob(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, JobSuccess, res.Status)
	})
}

func TestScheduler_Status(t *testing.T) {
	ctx := context.Background()
	runs := newMemJobRuns()
	require.NoError(t, runs.Record(ctx, domain.JobRun{Name: "daily", LastRunAt: t0, LastStatus: JobFailed, LastError: "x", LastDuration: 2 * time.Second}))
	var calls int32
	s := NewScheduler(runs, []Job{
		countingJob("daily", 24*time.Hour, &calls, nil),
		countingJob("hourly", time.Hour, &calls, nil),
	}, WithSchedulerClock(func() time.Time { return t0.Add(time.Hour) }))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st, 2)
	assert.Equal(t, "hourly", st[0].Name, "never-run jobs sort first")
	assert.True(t, st[0].Due)
	assert.Nil(t, st[0].LastRunAt)
	assert.Equal(t, "daily", st[1].Name)
	assert.False(t, st[1].Due)
	assert.Equal(t, JobFailed, st[1].LastStatus)
	assert.Equal(t, "2s", st[1].LastDuration)
	assert.True(t, st[1].NextRunAt.Equal(t0.Add(24*time.Hour)))

	runs.listErr = errors.New("db down")
	_, err = s.Status(ctx)
	assert.Error(t, err)
	_, err = s.RunDue(ctx)
	assert.Error(t, err)
}

func TestScheduler_RunLoop(t *testing.T) {
	ran := make(chan struct{}, 8)
	s := NewScheduler(newMemJobRuns(), []Job{{Name: "a", Interval: time.Hour, Run: func(context.Context) (string, error) {
		ran <- struct{}{}
		return "", nil
	}}}, WithTick(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Len(t, ran, 0, "not due again within the interval")
}

type fakeContent struct {
	rep usecase.RunReport
	err error
}

func (f fakeContent) RunAutomated(context.Context) (usecase.RunReport, error) { return f.rep, f.err }

type fakeResetter struct{ n int64 }

func (f fakeResetter) ResetAll(context.Context) (int64, error) { return f.n, nil }

type fakeCleaner struct{ err error }

func (f fakeCleaner) CleanupOldData(context.Context) (int64, error) { return 7, f.err }

func TestBuildJobs(t *testing.T) {
	cfg := config.Config{ContentInterval: 4 * time.Hour, KeyResetInterval: 24 * time.Hour, CleanupInterval: 12 * time.Hour}
	ctx := context.Background()

	jobs := BuildJobs(cfg, fakeContent{rep: usecase.RunReport{Generated: 1, Published: 1}}, fakeResetter{n: 3}, fakeCleaner{})
	require.Len(t, jobs, 3)
	assert.Equal(t, JobContentGeneration, jobs[0].Name)
	assert.Equal(t, 4*time.Hour, jobs[0].Interval)

	detail, err := jobs[0].Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "generated=1 published=1 failed=0", detail)
	detail, err = jobs[1].Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reset=3", detail)
	detail, err = jobs[2].Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "deleted=7", detail)

	failing := BuildJobs(cfg, fakeContent{rep: usecase.RunReport{Failed: 2, Errors: []string{"a: quota", "b: quota"}}}, nil, nil)
	require.Len(t, failing, 1)
	_, err = failing[0].Run(ctx)
	assert.ErrorContains(t, err, "a: quota; b: quota")
}
