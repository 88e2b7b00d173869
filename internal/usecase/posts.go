// Package usecase contains application business logic services.
package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/pkg/textx"
)

const slugAttempts = 3

// PostInput is the writable part of a post.
type PostInput struct {
	Title      string            `json:"title" validate:"required,max=300"`
	Content    string            `json:"content" validate:"required"`
	Excerpt    string            `json:"excerpt" validate:"max=500"`
	CategoryID *int64            `json:"categoryId,omitempty"`
	Status     domain.PostStatus `json:"status" validate:"omitempty,oneof=draft published"`
	Topic      string            `json:"topic" validate:"max=300"`
	ImageURL   string            `json:"imageUrl" validate:"omitempty,url"`
	ImageHint  string            `json:"imageHint" validate:"max=300"`
	IsFeatured bool              `json:"isFeatured"`
}

// PostService manages blog posts.
type PostService struct {
	Posts      domain.PostRepository
	Categories domain.CategoryRepository

	now    func() time.Time
	suffix func() string
}

// NewPostService constructs a PostService with its dependencies.
func NewPostService(p domain.PostRepository, c domain.CategoryRepository) PostService {
	return PostService{Posts: p, Categories: c, now: time.Now, suffix: randomSuffix}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}

func (s PostService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s PostService) slugFor(title string) string {
	suffix := randomSuffix()
	if s.suffix != nil {
		suffix = s.suffix()
	}
	base := textx.Slugify(title)
	if base == "" {
		return "post-" + suffix
	}
	return base + "-" + suffix
}

func (s PostService) checkCategory(ctx domain.Context, id *int64) error {
	if id == nil || s.Categories == nil {
		return nil
	}
	if _, err := s.Categories.Get(ctx, *id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown category %d", domain.ErrInvalidArgument, *id)
		}
		return err
	}
	return nil
}

// apply copies in onto p and derives read time, excerpt and publish time.
func (s PostService) apply(p *domain.Post, in PostInput, now time.Time) error {
	p.Title = textx.SanitizeText(in.Title)
	p.Content = strings.TrimSpace(in.Content)
	if p.Title == "" || p.Content == "" {
		return fmt.Errorf("%w: title and content required", domain.ErrInvalidArgument)
	}
	if in.Status == "" {
		in.Status = domain.PostDraft
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, in.Status)
	}
	plain := textx.StripTags(p.Content)
	p.Excerpt = textx.SanitizeText(in.Excerpt)
	if p.Excerpt == "" {
		p.Excerpt = textx.Excerpt(plain)
	}
	p.ReadTime = textx.ReadTime(plain)
	p.CategoryID = in.CategoryID
	p.Status = in.Status
	p.Topic = in.Topic
	p.ImageURL = in.ImageURL
	p.ImageHint = in.ImageHint
	p.IsFeatured = in.IsFeatured
	if p.Status == domain.PostPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	p.UpdatedAt = now
	return nil
}

// Create stores a new post under a fresh slug. A slug collision retries with
// another suffix.
func (s PostService) Create(ctx domain.Context, in PostInput) (domain.Post, error) {
	now := s.clock()
	p := domain.Post{CreatedAt: now}
	if err := s.apply(&p, in, now); err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.Create: %w", err)
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.Create: %w", err)
	}
	var err error
	for i := 0; i < slugAttempts; i++ {
		p.Slug = s.slugFor(p.Title)
		var id int64
		id, err = s.Posts.Create(ctx, p)
		if err == nil {
			p.ID = id
			return p, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}
	return domain.Post{}, fmt.Errorf("op=usecase.PostService.Create: %w", err)
}

// Update replaces the writable fields of post id. The slug is kept.
func (s PostService) Update(ctx domain.Context, id int64, in PostInput) (domain.Post, error) {
	p, err := s.Posts.Get(ctx, id)
	if err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.Update: %w", err)
	}
	if err := s.apply(&p, in, s.clock()); err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.Update: %w", err)
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.Update: %w", err)
	}
	if err := s.Posts.Update(ctx, p); err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.Update: %w", err)
	}
	return p, nil
}

func (s PostService) modify(ctx domain.Context, op string, id int64, fn func(*domain.Post, time.Time)) (domain.Post, error) {
	p, err := s.Posts.Get(ctx, id)
	if err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.%s: %w", op, err)
	}
	now := s.clock()
	fn(&p, now)
	p.UpdatedAt = now
	if err := s.Posts.Update(ctx, p); err != nil {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.%s: %w", op, err)
	}
	return p, nil
}

// Publish marks a post published. Publishing twice keeps the first timestamp.
func (s PostService) Publish(ctx domain.Context, id int64) (domain.Post, error) {
	return s.modify(ctx, "Publish", id, func(p *domain.Post, now time.Time) {
		p.Status = domain.PostPublished
		if p.PublishedAt == nil {
			p.PublishedAt = &now
		}
	})
}

func (s PostService) SetFeatured(ctx domain.Context, id int64, featured bool) (domain.Post, error) {
	return s.modify(ctx, "SetFeatured", id, func(p *domain.Post, _ time.Time) {
		p.IsFeatured = featured
	})
}

func (s PostService) Delete(ctx domain.Context, id int64) error {
	if err := s.Posts.Delete(ctx, id); err != nil {
		return fmt.Errorf("op=usecase.PostService.Delete: %w", err)
	}
	return nil
}

func (s PostService) Get(ctx domain.Context, id int64) (domain.Post, error) {
	return s.Posts.Get(ctx, id)
}

// GetPublished returns a published post by slug; drafts are reported as not found.
func (s PostService) GetPublished(ctx domain.Context, slug string) (domain.Post, error) {
	p, err := s.Posts.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Post{}, err
	}
	if p.Status != domain.PostPublished {
		return domain.Post{}, fmt.Errorf("op=usecase.PostService.GetPublished: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (s PostService) GetBySlug(ctx domain.Context, slug string) (domain.Post, error) {
	return s.Posts.GetBySlug(ctx, slug)
}

// List returns one page of posts and the total matching f.
func (s PostService) List(ctx domain.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("op=usecase.PostService.List: %w: unknown status %q", domain.ErrInvalidArgument, f.Status)
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.Posts.List(ctx, f)
}
