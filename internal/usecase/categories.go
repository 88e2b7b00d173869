package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/pkg/textx"
)

// CategoryInput is the writable part of a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// CategoryService manages post categories.
type CategoryService struct {
	Categories domain.CategoryRepository
}

func NewCategoryService(c domain.CategoryRepository) CategoryService {
	return CategoryService{Categories: c}
}

// Create stores a category; its slug derives from the name.
func (s CategoryService) Create(ctx domain.Context, in CategoryInput) (domain.Category, error) {
	name := textx.SanitizeText(in.Name)
	slug := textx.Slugify(name)
	if name == "" || slug == "" {
		return domain.Category{}, fmt.Errorf("op=usecase.CategoryService.Create: %w: name required", domain.ErrInvalidArgument)
	}
	c := domain.Category{Name: name, Slug: slug, Description: textx.SanitizeText(in.Description), CreatedAt: time.Now().UTC()}
	id, err := s.Categories.Create(ctx, c)
	if err != nil {
		return domain.Category{}, fmt.Errorf("op=usecase.CategoryService.Create: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s CategoryService) List(ctx domain.Context) ([]domain.Category, error) {
	return s.Categories.List(ctx)
}

func (s CategoryService) Delete(ctx domain.Context, id int64) error {
	if err := s.Categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("op=usecase.CategoryService.Delete: %w", err)
	}
	return nil
}

// EnsureByName returns the category called name, creating it when missing.
// A concurrent create of the same name resolves to the stored row.
func (s CategoryService) EnsureByName(ctx domain.Context, name string) (domain.Category, error) {
	c, err := s.Categories.GetByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Category{}, fmt.Errorf("op=usecase.CategoryService.EnsureByName: %w", err)
	}
	c, err = s.Create(ctx, CategoryInput{Name: name})
	if errors.Is(err, domain.ErrConflict) {
		return s.Categories.GetByName(ctx, name)
	}
	return c, err
}
