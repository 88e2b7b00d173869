package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Prompt markers, one per flow.
const (
	onOutline    = "You write outlines"
	onArticle    = "Outline to follow"
	onQuality    = "Target keywords"
	onTrending   = "You track technology trends"
	onSource     = "research assistant"
	onRewrite    = "research notes"
	onCategorize = "Pick the category"
	onEnhance    = "You improve published"
	onTraffic    = "content strategist"
)

type reply struct {
	text string
	err  error
}

// scriptedCompleter answers by the first marker found in the prompt.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  map[string]reply
	prompts  []string
	purposes []domain.Purpose
}

func newCompleter() *scriptedCompleter {
	return &scriptedCompleter{replies: map[string]reply{}}
}

func (c *scriptedCompleter) on(marker, text string) *scriptedCompleter {
	c.replies[marker] = reply{text: text}
	return c
}

func (c *scriptedCompleter) fail(marker string, err error) *scriptedCompleter {
	c.replies[marker] = reply{err: err}
	return c
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string, purpose domain.Purpose) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.purposes = append(c.purposes, purpose)
	for marker, r := range c.replies {
		if strings.Contains(prompt, marker) {
			return r.text, r.err
		}
	}
	return "", fmt.Errorf("no scripted reply: %w", domain.ErrPermanentFailure)
}

func (c *scriptedCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// testify mocks

type mockPostRepo struct{ mock.Mock }

func (m *mockPostRepo) Create(ctx domain.Context, p domain.Post) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPostRepo) Update(ctx domain.Context, p domain.Post) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPostRepo) Get(ctx domain.Context, id int64) (domain.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPostRepo) GetBySlug(ctx domain.Context, slug string) (domain.Post, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *mockPostRepo) List(ctx domain.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Post), args.Get(1).(int64), args.Error(2)
}

func (m *mockPostRepo) Delete(ctx domain.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockCategoryRepo struct{ mock.Mock }

func (m *mockCategoryRepo) Create(ctx domain.Context, c domain.Category) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCategoryRepo) Get(ctx domain.Context, id int64) (domain.Category, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) GetByName(ctx domain.Context, name string) (domain.Category, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) List(ctx domain.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) Delete(ctx domain.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// in-memory fakes for multi-step flows

type memPosts struct {
	mu    sync.Mutex
	next  int64
	posts map[int64]domain.Post
}

func newMemPosts() *memPosts { return &memPosts{posts: map[int64]domain.Post{}} }

func (m *memPosts) Create(_ domain.Context, p domain.Post) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.posts {
		if existing.Slug == p.Slug {
			return 0, domain.ErrConflict
		}
	}
	m.next++
	p.ID = m.next
	m.posts[p.ID] = p
	return p.ID, nil
}

func (m *memPosts) Update(_ domain.Context, p domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[p.ID]; !ok {
		return domain.ErrNotFound
	}
	m.posts[p.ID] = p
	return nil
}

func (m *memPosts) Get(_ domain.Context, id int64) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPosts) GetBySlug(_ domain.Context, slug string) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Post{}, domain.ErrNotFound
}

func (m *memPosts) List(_ domain.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Post
	for _, p := range m.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memPosts) Delete(_ domain.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memPosts) all() []domain.Post {
	out, _, _ := m.List(context.Background(), domain.PostFilter{})
	return out
}

type memCategories struct {
	mu   sync.Mutex
	next int64
	cats map[int64]domain.Category
}

func newMemCategories() *memCategories { return &memCategories{cats: map[int64]domain.Category{}} }

func (m *memCategories) Create(_ domain.Context, c domain.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.cats {
		if strings.EqualFold(existing.Name, c.Name) {
			return 0, domain.ErrConflict
		}
	}
	m.next++
	c.ID = m.next
	m.cats[c.ID] = c
	return c.ID, nil
}

func (m *memCategories) Get(_ domain.Context, id int64) (domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cats[id]
	if !ok {
		return domain.Category{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memCategories) GetByName(_ domain.Context, name string) (domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cats {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return domain.Category{}, domain.ErrNotFound
}

func (m *memCategories) List(_ domain.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Category, 0, len(m.cats))
	for _, c := range m.cats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memCategories) Delete(_ domain.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cats, id)
	return nil
}

type memQuality struct {
	mu     sync.Mutex
	checks []domain.QualityCheck
}

func (m *memQuality) Create(_ domain.Context, q domain.QualityCheck) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, q)
	return int64(len(m.checks)), nil
}

func (m *memQuality) LatestForPost(_ domain.Context, postID int64) (domain.QualityCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.checks) - 1; i >= 0; i-- {
		if m.checks[i].PostID == postID {
			return m.checks[i], nil
		}
	}
	return domain.QualityCheck{}, domain.ErrNotFound
}

type viewBump struct {
	postID int64
	unique bool
}

type memVisitors struct {
	mu       sync.Mutex
	visitors []domain.Visitor
	bumps    []viewBump
	seenErr  error

	stats     domain.VisitorStats
	countries []domain.CountryCount
	top       []domain.PostMetrics
	trend     []domain.DailyCount
	aggErr    error
	trendFrom time.Time
}

func (m *memVisitors) Insert(_ domain.Context, v domain.Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors = append(m.visitors, v)
	return nil
}

func (m *memVisitors) IncrementViews(_ domain.Context, postID int64, unique bool, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumps = append(m.bumps, viewBump{postID: postID, unique: unique})
	return nil
}

func (m *memVisitors) SeenToday(_ domain.Context, postID int64, ipHash string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return false, m.seenErr
	}
	y, mo, d := day.UTC().Date()
	for _, v := range m.visitors {
		vy, vm, vd := v.VisitedAt.UTC().Date()
		if v.PostID != nil && *v.PostID == postID && v.IPHash == ipHash && vy == y && vm == mo && vd == d {
			return true, nil
		}
	}
	return false, nil
}

func (m *memVisitors) Stats(_ domain.Context, _ time.Time) (domain.VisitorStats, error) {
	return m.stats, m.aggErr
}

func (m *memVisitors) ByCountry(_ domain.Context, _ int) ([]domain.CountryCount, error) {
	return m.countries, nil
}

func (m *memVisitors) TopPosts(_ domain.Context, _ int) ([]domain.PostMetrics, error) {
	return m.top, nil
}

func (m *memVisitors) DailyTrend(_ domain.Context, since time.Time) ([]domain.DailyCount, error) {
	m.mu.Lock()
	m.trendFrom = since
	m.mu.Unlock()
	return m.trend, nil
}
