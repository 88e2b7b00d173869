package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrPoolExhausted      = errors.New("credential pool exhausted")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrPermanentFailure   = errors.New("permanent provider failure")
	ErrDeadlineExceeded   = errors.New("deadline exceeded")
	ErrParse              = errors.New("parse error")
	ErrSchemaInvalid      = errors.New("schema invalid")
	ErrInternal           = errors.New("internal error")
)

// Purpose tags a logical request so a reserved credential can be preferred.
type Purpose string

const (
	PurposeContent   Purpose = "content"
	PurposeAnalytics Purpose = "analytics"
)

// Valid reports whether p is a known purpose. The empty purpose is valid and
// means "pool policy only".
func (p Purpose) Valid() bool {
	switch p {
	case "", PurposeContent, PurposeAnalytics:
		return true
	}
	return false
}

// Credential is one provider API key with its quota bookkeeping.
// Invariants: UsageCount >= 0 and only grows between resets; Name is unique.
type Credential struct {
	ID            int64
	Name          string
	Value         string
	UsageCount    int64
	QuotaExceeded bool
	LastUsedAt    *time.Time
	ResetAt       *time.Time
	CreatedAt     time.Time
}

// Masked returns the secret with everything but the last 4 characters hidden.
func (c Credential) Masked() string {
	if len(c.Value) <= 4 {
		return strings.Repeat("*", len(c.Value))
	}
	return strings.Repeat("*", len(c.Value)-4) + c.Value[len(c.Value)-4:]
}

// PostStatus enumerates post lifecycle states.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool { return s == PostDraft || s == PostPublished }

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt"`
	CategoryID  *int64     `json:"categoryId,omitempty"`
	Status      PostStatus `json:"status"`
	ReadTime    int        `json:"readTime"`
	Topic       string     `json:"topic,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	ImageHint   string     `json:"imageHint,omitempty"`
	IsFeatured  bool       `json:"isFeatured"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type QualityCheck struct {
	ID                  int64
	PostID              int64
	ReadabilityScore    int
	KeywordDensityScore int
	IsHighQuality       bool
	Suggestions         []string
	CheckedAt           time.Time
}

type Visitor struct {
	ID        string
	IPHash    string
	Path      string
	PostID    *int64
	UserAgent string
	Referrer  string
	Country   string
	City      string
	VisitedAt time.Time
}

type PostMetrics struct {
	PostID       int64      `json:"postId"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Views        int64      `json:"views"`
	UniqueViews  int64      `json:"uniqueViews"`
	LastViewedAt *time.Time `json:"lastViewedAt,omitempty"`
}

// JobRun is the persisted last-run record of one scheduled job.
type JobRun struct {
	Name         string
	LastRunAt    time.Time
	LastStatus   string
	LastError    string
	LastDuration time.Duration
	RunCount     int64
}

// JobResult is the outcome of one scheduled job execution.
type JobResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// JobStatus describes a job's schedule and its last recorded run.
type JobStatus struct {
	Name         string     `json:"name"`
	Interval     string     `json:"interval"`
	LastRunAt    *time.Time `json:"lastRunAt,omitempty"`
	LastStatus   string     `json:"lastStatus,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	LastDuration string     `json:"lastDuration,omitempty"`
	RunCount     int64      `json:"runCount"`
	NextRunAt    time.Time  `json:"nextRunAt"`
	Due          bool       `json:"due"`
}

// PostFilter narrows post listings.
type PostFilter struct {
	Status     PostStatus
	CategoryID *int64
	Featured   *bool
	Offset     int
	Limit      int
}

// VisitorStats aggregates visitor counts.
type VisitorStats struct {
	Total  int64 `json:"total"`
	Unique int64 `json:"unique"`
	Today  int64 `json:"today"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// Repositories (ports)

type CategoryRepository interface {
	Create(ctx Context, c Category) (int64, error)
	Get(ctx Context, id int64) (Category, error)
	GetByName(ctx Context, name string) (Category, error)
	List(ctx Context) ([]Category, error)
	Delete(ctx Context, id int64) error
}

type PostRepository interface {
	Create(ctx Context, p Post) (int64, error)
	Update(ctx Context, p Post) error
	Get(ctx Context, id int64) (Post, error)
	GetBySlug(ctx Context, slug string) (Post, error)
	List(ctx Context, f PostFilter) ([]Post, int64, error)
	Delete(ctx Context, id int64) error
}

type QualityRepository interface {
	Create(ctx Context, q QualityCheck) (int64, error)
	LatestForPost(ctx Context, postID int64) (QualityCheck, error)
}

type VisitorRepository interface {
	Insert(ctx Context, v Visitor) error
	IncrementViews(ctx Context, postID int64, unique bool, at time.Time) error
	SeenToday(ctx Context, postID int64, ipHash string, day time.Time) (bool, error)
	Stats(ctx Context, now time.Time) (VisitorStats, error)
	ByCountry(ctx Context, limit int) ([]CountryCount, error)
	TopPosts(ctx Context, limit int) ([]PostMetrics, error)
	DailyTrend(ctx Context, since time.Time) ([]DailyCount, error)
}

type JobRunRepository interface {
	Get(ctx Context, name string) (JobRun, error)
	List(ctx Context) ([]JobRun, error)
	Record(ctx Context, run JobRun) error
}

// Completer (port) turns a prompt into model text. Implemented by the
// rate-limited executor.
type Completer interface {
	Complete(ctx Context, prompt string, purpose Purpose) (string, error)
}

// Context is an alias so domain ports read the same as the adapters
// implementing them.
type Context = context.Context
