package postgres

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// CategoryRepo persists blog categories.
type CategoryRepo struct{ Pool PgxPool }

// NewCategoryRepo constructs a CategoryRepo with the given pool.
func NewCategoryRepo(p PgxPool) *CategoryRepo { return &CategoryRepo{Pool: p} }

func (r *CategoryRepo) Create(ctx domain.Context, c domain.Category) (int64, error) {
	ctx, span := startSpan(ctx, "repo.categories", "categories.Create", "INSERT", "blog_categories")
	defer span.End()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := r.Pool.QueryRow(ctx,
		`INSERT INTO blog_categories (name, slug, description, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		c.Name, c.Slug, c.Description, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, mapError("category.create", err)
	}
	return id, nil
}

func (r *CategoryRepo) Get(ctx domain.Context, id int64) (domain.Category, error) {
	ctx, span := startSpan(ctx, "repo.categories", "categories.Get", "SELECT", "blog_categories")
	defer span.End()
	var c domain.Category
	err := r.Pool.QueryRow(ctx, `SELECT id, name, slug, description, created_at FROM blog_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if err != nil {
		return domain.Category{}, mapError("category.get", err)
	}
	return c, nil
}

// GetByName matches names case-insensitively.
func (r *CategoryRepo) GetByName(ctx domain.Context, name string) (domain.Category, error) {
	ctx, span := startSpan(ctx, "repo.categories", "categories.GetByName", "SELECT", "blog_categories")
	defer span.End()
	var c domain.Category
	err := r.Pool.QueryRow(ctx, `SELECT id, name, slug, description, created_at FROM blog_categories WHERE lower(name)=lower($1)`, name).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if err != nil {
		return domain.Category{}, mapError("category.get_by_name", err)
	}
	return c, nil
}

func (r *CategoryRepo) List(ctx domain.Context) ([]domain.Category, error) {
	ctx, span := startSpan(ctx, "repo.categories", "categories.List", "SELECT", "blog_categories")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT id, name, slug, description, created_at FROM blog_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("op=category.list: %w", err)
	}
	defer rows.Close()
	out := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=category.list: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=category.list: %w", err)
	}
	return out, nil
}

func (r *CategoryRepo) Delete(ctx domain.Context, id int64) error {
	ctx, span := startSpan(ctx, "repo.categories", "categories.Delete", "DELETE", "blog_categories")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM blog_categories WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("op=category.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=category.delete: %w", domain.ErrNotFound)
	}
	return nil
}
