package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// PostRepo persists blog posts.
type PostRepo struct{ Pool PgxPool }

// NewPostRepo constructs a PostRepo with the given pool.
func NewPostRepo(p PgxPool) *PostRepo { return &PostRepo{Pool: p} }

const postColumns = `id, title, slug, content, excerpt, category_id, status, read_time, topic, image_url, image_hint, is_featured, published_at, created_at, updated_at`

func scanPost(row pgx.Row) (domain.Post, error) {
	var p domain.Post
	var status string
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.CategoryID, &status,
		&p.ReadTime, &p.Topic, &p.ImageURL, &p.ImageHint, &p.IsFeatured, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
	p.Status = domain.PostStatus(status)
	return p, err
}

func (r *PostRepo) Create(ctx domain.Context, p domain.Post) (int64, error) {
	ctx, span := startSpan(ctx, "repo.posts", "posts.Create", "INSERT", "blog_posts")
	defer span.End()
	now := time.Now().UTC()
	if p.Status == "" {
		p.Status = domain.PostDraft
	}
	q := `INSERT INTO blog_posts (title, slug, content, excerpt, category_id, status, read_time, topic, image_url, image_hint, is_featured, published_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13) RETURNING id`
	var id int64
	err := r.Pool.QueryRow(ctx, q, p.Title, p.Slug, p.Content, p.Excerpt, p.CategoryID, string(p.Status),
		p.ReadTime, p.Topic, p.ImageURL, p.ImageHint, p.IsFeatured, p.PublishedAt, now).Scan(&id)
	if err != nil {
		return 0, mapError("post.create", err)
	}
	return id, nil
}

func (r *PostRepo) Update(ctx domain.Context, p domain.Post) error {
	ctx, span := startSpan(ctx, "repo.posts", "posts.Update", "UPDATE", "blog_posts")
	defer span.End()
	q := `UPDATE blog_posts SET title=$2, slug=$3, content=$4, excerpt=$5, category_id=$6, status=$7, read_time=$8,
		topic=$9, image_url=$10, image_hint=$11, is_featured=$12, published_at=$13, updated_at=$14 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, p.ID, p.Title, p.Slug, p.Content, p.Excerpt, p.CategoryID, string(p.Status),
		p.ReadTime, p.Topic, p.ImageURL, p.ImageHint, p.IsFeatured, p.PublishedAt, time.Now().UTC())
	if err != nil {
		return mapError("post.update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=post.update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PostRepo) Get(ctx domain.Context, id int64) (domain.Post, error) {
	ctx, span := startSpan(ctx, "repo.posts", "posts.Get", "SELECT", "blog_posts")
	defer span.End()
	p, err := scanPost(r.Pool.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id=$1`, id))
	if err != nil {
		return domain.Post{}, mapError("post.get", err)
	}
	return p, nil
}

func (r *PostRepo) GetBySlug(ctx domain.Context, slug string) (domain.Post, error) {
	ctx, span := startSpan(ctx, "repo.posts", "posts.GetBySlug", "SELECT", "blog_posts")
	defer span.End()
	p, err := scanPost(r.Pool.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE slug=$1`, slug))
	if err != nil {
		return domain.Post{}, mapError("post.get_by_slug", err)
	}
	return p, nil
}

// postWhere builds the WHERE clause and arguments for a filter.
func postWhere(f domain.PostFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if f.Featured != nil {
		args = append(args, *f.Featured)
		conds = append(conds, fmt.Sprintf("is_featured=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of posts matching f, newest first, and the total
// number of matches.
func (r *PostRepo) List(ctx domain.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	ctx, span := startSpan(ctx, "repo.posts", "posts.List", "SELECT", "blog_posts")
	defer span.End()
	where, args := postWhere(f)

	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM blog_posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=post.list.count: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	pageArgs := append(append([]any{}, args...), limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM blog_posts%s ORDER BY COALESCE(published_at, created_at) DESC, id DESC LIMIT $%d OFFSET $%d`,
		postColumns, where, len(args)+1, len(args)+2)
	rows, err := r.Pool.Query(ctx, q, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("op=post.list: %w", err)
	}
	defer rows.Close()
	out := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("op=post.list: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=post.list: %w", err)
	}
	return out, total, nil
}

func (r *PostRepo) Delete(ctx domain.Context, id int64) error {
	ctx, span := startSpan(ctx, "repo.posts", "posts.Delete", "DELETE", "blog_posts")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM blog_posts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("op=post.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=post.delete: %w", domain.ErrNotFound)
	}
	return nil
}
