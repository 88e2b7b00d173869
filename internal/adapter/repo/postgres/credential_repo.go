package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// CredentialRepo stores provider credentials in blog_api_keys. It is the
// production keypool.Store.
type CredentialRepo struct{ Pool PgxPool }

// NewCredentialRepo constructs a CredentialRepo with the given pool.
func NewCredentialRepo(p PgxPool) *CredentialRepo { return &CredentialRepo{Pool: p} }

const credentialColumns = `id, key_name, key_value, usage_count, quota_exceeded, last_used_at, reset_at, created_at`

func scanCredential(row pgx.Row) (domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(&c.ID, &c.Name, &c.Value, &c.UsageCount, &c.QuotaExceeded, &c.LastUsedAt, &c.ResetAt, &c.CreatedAt)
	return c, err
}

// List returns every credential ordered by id.
func (r *CredentialRepo) List(ctx context.Context) ([]domain.Credential, error) {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.List", "SELECT", "blog_api_keys")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+credentialColumns+` FROM blog_api_keys ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("op=credential.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("op=credential.list: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=credential.list: %w", err)
	}
	return out, nil
}

func (r *CredentialRepo) GetByName(ctx context.Context, name string) (domain.Credential, error) {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.GetByName", "SELECT", "blog_api_keys")
	defer span.End()
	c, err := scanCredential(r.Pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM blog_api_keys WHERE key_name=$1`, name))
	if err != nil {
		return domain.Credential{}, mapError("credential.get_by_name", err)
	}
	return c, nil
}

// Insert adds a credential with zero counters. A taken name fails with
// domain.ErrDuplicateName.
func (r *CredentialRepo) Insert(ctx context.Context, name, value string, at time.Time) (domain.Credential, error) {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.Insert", "INSERT", "blog_api_keys")
	defer span.End()
	q := `INSERT INTO blog_api_keys (key_name, key_value, usage_count, quota_exceeded, created_at)
		VALUES ($1, $2, 0, false, $3) RETURNING ` + credentialColumns
	c, err := scanCredential(r.Pool.QueryRow(ctx, q, name, value, at.UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Credential{}, fmt.Errorf("op=credential.insert: credential %q: %w", name, domain.ErrDuplicateName)
		}
		return domain.Credential{}, fmt.Errorf("op=credential.insert: %w", err)
	}
	return c, nil
}

func (r *CredentialRepo) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.MarkUsed", "UPDATE", "blog_api_keys")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE blog_api_keys SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("op=credential.mark_used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=credential.mark_used: credential id %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *CredentialRepo) MarkExceeded(ctx context.Context, id int64, at time.Time) error {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.MarkExceeded", "UPDATE", "blog_api_keys")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE blog_api_keys SET quota_exceeded = true, last_used_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("op=credential.mark_exceeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=credential.mark_exceeded: credential id %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ResetAll zeroes every credential in one statement.
func (r *CredentialRepo) ResetAll(ctx context.Context, at time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.ResetAll", "UPDATE", "blog_api_keys")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE blog_api_keys SET usage_count = 0, quota_exceeded = false, reset_at = $1`, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=credential.reset_all: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *CredentialRepo) Delete(ctx context.Context, name string) error {
	ctx, span := startSpan(ctx, "repo.credentials", "credentials.Delete", "DELETE", "blog_api_keys")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM blog_api_keys WHERE key_name = $1`, name)
	if err != nil {
		return fmt.Errorf("op=credential.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=credential.delete: credential %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
