package httpserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

const (
	adminUser  = "admin"
	adminPass  = "correct-horse"
	cronSecret = "cron-secret"
)

type mockPosts struct{ mock.Mock }

func (m *mockPosts) Create(ctx context.Context, in usecase.PostInput) (domain.Post, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPosts) Update(ctx context.Context, id int64, in usecase.PostInput) (domain.Post, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPosts) Publish(ctx context.Context, id int64) (domain.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPosts) SetFeatured(ctx context.Context, id int64, featured bool) (domain.Post, error) {
	args := m.Called(ctx, id, featured)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPosts) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPosts) Get(ctx context.Context, id int64) (domain.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPosts) GetPublished(ctx context.Context, slug string) (domain.Post, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPosts) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	args := m.Called(ctx, f)
	posts, _ := args.Get(0).([]domain.Post)
	return posts, args.Get(1).(int64), args.Error(2)
}

type stubCategories struct {
	cats      []domain.Category
	created   []usecase.CategoryInput
	deleteErr error
}

func (s *stubCategories) Create(_ context.Context, in usecase.CategoryInput) (domain.Category, error) {
	s.created = append(s.created, in)
	return domain.Category{ID: int64(len(s.created)), Name: in.Name, Slug: strings.ToLower(in.Name)}, nil
}

func (s *stubCategories) List(context.Context) ([]domain.Category, error) { return s.cats, nil }

func (s *stubCategories) Delete(context.Context, int64) error { return s.deleteErr }

type stubContent struct {
	topics      []string
	genErr      error
	outline     usecase.Outline
	outlineFell bool
	trending    []usecase.TrendingTopic
	enhance     usecase.Enhancement
	enhanceErr  error
}

func (s *stubContent) GenerateAndProcess(_ context.Context, topic string) (usecase.GenerateResult, error) {
	s.topics = append(s.topics, topic)
	if s.genErr != nil {
		return usecase.GenerateResult{}, s.genErr
	}
	return usecase.GenerateResult{Post: domain.Post{ID: 9, Title: topic, Status: domain.PostDraft}, Category: "AI News"}, nil
}

func (s *stubContent) PreviewOutline(_ context.Context, _ string) (usecase.Outline, bool, error) {
	return s.outline, s.outlineFell, nil
}

func (s *stubContent) TrendingTopics(context.Context) []usecase.TrendingTopic { return s.trending }

func (s *stubContent) Enhance(context.Context, int64) (usecase.Enhancement, error) {
	return s.enhance, s.enhanceErr
}

type stubTracker struct {
	got usecase.Visit
	err error
}

func (s *stubTracker) Track(_ context.Context, v usecase.Visit) (usecase.TrackResult, error) {
	s.got = v
	return usecase.TrackResult{PostID: v.PostID, Unique: true}, s.err
}

type stubAnalytics struct {
	dash     usecase.Dashboard
	insights usecase.InsightsResult
	err      error
}

func (s stubAnalytics) Dashboard(context.Context) (usecase.Dashboard, error) { return s.dash, s.err }

func (s stubAnalytics) AnalyzeTraffic(context.Context) (usecase.InsightsResult, error) {
	return s.insights, s.err
}

type stubKeys struct {
	keys    []usecase.KeyView
	added   []usecase.KeyInput
	removed []string
	addErr  error
}

func (s *stubKeys) List(context.Context) ([]usecase.KeyView, error) { return s.keys, nil }

func (s *stubKeys) Add(_ context.Context, in usecase.KeyInput) (usecase.KeyView, error) {
	if s.addErr != nil {
		return usecase.KeyView{}, s.addErr
	}
	s.added = append(s.added, in)
	return usecase.KeyView{Name: in.Name, Key: "****" + in.Value[len(in.Value)-4:]}, nil
}

func (s *stubKeys) Remove(_ context.Context, name string) error {
	if name == "missing" {
		return domain.ErrNotFound
	}
	s.removed = append(s.removed, name)
	return nil
}

func (s *stubKeys) Reset(context.Context) (int64, error) { return int64(len(s.keys)), nil }

type stubJobs struct {
	forced []bool
	status []domain.JobStatus
}

func (s *stubJobs) RunAll(_ context.Context, force bool) ([]domain.JobResult, error) {
	s.forced = append(s.forced, force)
	return []domain.JobResult{{Name: "content-generation", Status: "success"}}, nil
}

func (s *stubJobs) RunJob(_ context.Context, name string) (domain.JobResult, error) {
	if name != "api-key-reset" {
		return domain.JobResult{}, domain.ErrNotFound
	}
	return domain.JobResult{Name: name, Status: "success", Detail: "reset=2"}, nil
}

func (s *stubJobs) Status(context.Context) ([]domain.JobStatus, error) { return s.status, nil }

type harness struct {
	posts     *mockPosts
	cats      *stubCategories
	content   *stubContent
	tracker   *stubTracker
	analytics stubAnalytics
	keys      *stubKeys
	jobs      *stubJobs
	srv       *httpserver.Server
	router    http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hash, err := httpserver.HashPassword(adminPass, httpserver.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16})
	require.NoError(t, err)
	cfg := config.Config{AdminUsername: adminUser, AdminPasswordHash: hash, CronSecret: cronSecret}

	h := &harness{
		posts:   &mockPosts{},
		cats:    &stubCategories{},
		content: &stubContent{},
		tracker: &stubTracker{},
		keys:    &stubKeys{},
		jobs:    &stubJobs{},
	}
	h.srv = httpserver.NewServer(cfg, h.posts, h.cats, h.content, h.tracker, &h.analytics, h.keys, h.jobs, nil, nil)
	h.rebuild()
	return h
}

func (h *harness) rebuild() {
	r := chi.NewRouter()
	h.srv.MountPublic(r)
	h.srv.MountTracking(r)
	h.srv.MountAdmin(r)
	h.srv.MountCron(r)
	h.router = r
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rw := httptest.NewRecorder()
	h.router.ServeHTTP(rw, r)
	return rw
}

func (h *harness) admin(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.SetBasicAuth(adminUser, adminPass)
	rw := httptest.NewRecorder()
	h.router.ServeHTTP(rw, r)
	return rw
}
