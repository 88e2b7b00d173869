// Package keypool hands out provider credentials and records what happened
// to them. Selection prefers a credential reserved for the request's purpose
// and otherwise picks the least used credential that still has quota.
package keypool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Store persists credentials. Each mutation touches a single row; concurrent
// writers are last-writer-wins.
type Store interface {
	List(ctx context.Context) ([]domain.Credential, error)
	GetByName(ctx context.Context, name string) (domain.Credential, error)
	Insert(ctx context.Context, name, value string, at time.Time) (domain.Credential, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) error
	MarkExceeded(ctx context.Context, id int64, at time.Time) error
	ResetAll(ctx context.Context, at time.Time) (int64, error)
	Delete(ctx context.Context, name string) error
}

// Manager is the key pool resource manager.
type Manager struct {
	store Store
	now   func() time.Time

	mu       sync.RWMutex
	reserved map[domain.Purpose]string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithReserved reserves the named credential for purpose.
func WithReserved(purpose domain.Purpose, name string) Option {
	return func(m *Manager) { m.reserved[purpose] = name }
}

// NewManager constructs a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now, reserved: map[domain.Purpose]string{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Reserve sets or clears (empty name) the credential reserved for purpose.
func (m *Manager) Reserve(purpose domain.Purpose, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		delete(m.reserved, purpose)
		return
	}
	m.reserved[purpose] = name
}

func (m *Manager) reservedFor(purpose domain.Purpose) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reserved[purpose]
}

// SelectCredential returns the credential the next call for purpose should use.
// It fails with domain.ErrPoolExhausted when nothing is eligible.
func (m *Manager) SelectCredential(ctx context.Context, purpose domain.Purpose) (domain.Credential, error) {
	cands, err := m.Candidates(ctx, purpose)
	if err != nil {
		return domain.Credential{}, err
	}
	return cands[0], nil
}

// Candidates returns every eligible credential in selection order: the
// credential reserved for purpose first (when it has quota), then the pool
// policy order. The result is never empty when err is nil.
func (m *Manager) Candidates(ctx context.Context, purpose domain.Purpose) ([]domain.Credential, error) {
	ctx, span := otel.Tracer("keypool").Start(ctx, "keypool.Candidates")
	defer span.End()
	span.SetAttributes(attribute.String("keypool.purpose", string(purpose)))

	if !purpose.Valid() {
		return nil, fmt.Errorf("op=keypool.candidates: %w: unknown purpose %q", domain.ErrInvalidArgument, purpose)
	}
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=keypool.candidates: %w", err)
	}
	ranked := Rank(all)
	observability.SetPoolAvailable(len(ranked))
	span.SetAttributes(attribute.Int("keypool.eligible", len(ranked)))
	if len(ranked) == 0 {
		observability.ObservePoolExhausted()
		return nil, fmt.Errorf("op=keypool.candidates: %w (%d credentials, none eligible)", domain.ErrPoolExhausted, len(all))
	}
	if name := m.reservedFor(purpose); name != "" {
		for i, c := range ranked {
			if c.Name == name {
				out := make([]domain.Credential, 0, len(ranked))
				out = append(out, c)
				out = append(out, ranked[:i]...)
				return append(out, ranked[i+1:]...), nil
			}
		}
		observability.LoggerFromContext(ctx).Debug("reserved credential not eligible, using pool policy",
			slog.String("purpose", string(purpose)), slog.String("name", name))
	}
	return ranked, nil
}

// Rank filters out exceeded credentials and orders the rest by usage count,
// then earliest last use (never used first), then creation order.
func Rank(creds []domain.Credential) []domain.Credential {
	out := make([]domain.Credential, 0, len(creds))
	for _, c := range creds {
		if !c.QuotaExceeded {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b domain.Credential) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount < b.UsageCount
	}
	switch {
	case a.LastUsedAt == nil && b.LastUsedAt != nil:
		return true
	case a.LastUsedAt != nil && b.LastUsedAt == nil:
		return false
	case a.LastUsedAt != nil && b.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt):
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// RecordSuccess bumps the usage counter and last-used time.
func (m *Manager) RecordSuccess(ctx context.Context, cred domain.Credential) error {
	if err := m.store.MarkUsed(ctx, cred.ID, m.now()); err != nil {
		return fmt.Errorf("op=keypool.record_success: %w", err)
	}
	return nil
}

// RecordExhaustion marks the credential's quota as spent. Idempotent.
func (m *Manager) RecordExhaustion(ctx context.Context, cred domain.Credential) error {
	if err := m.store.MarkExceeded(ctx, cred.ID, m.now()); err != nil {
		return fmt.Errorf("op=keypool.record_exhaustion: %w", err)
	}
	observability.LoggerFromContext(ctx).Warn("credential quota exceeded", slog.String("name", cred.Name))
	return nil
}

// ResetAll clears usage and exhaustion on every credential. Idempotent.
func (m *Manager) ResetAll(ctx context.Context) (int64, error) {
	n, err := m.store.ResetAll(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("op=keypool.reset_all: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("credential pool reset", slog.Int64("credentials", n))
	return n, nil
}

// AddCredential inserts a new credential with zeroed counters.
// An existing name fails with domain.ErrDuplicateName.
func (m *Manager) AddCredential(ctx context.Context, name, value string) (domain.Credential, error) {
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if name == "" || value == "" {
		return domain.Credential{}, fmt.Errorf("op=keypool.add: %w: name and value are required", domain.ErrInvalidArgument)
	}
	c, err := m.store.Insert(ctx, name, value, m.now())
	if err != nil {
		return domain.Credential{}, fmt.Errorf("op=keypool.add: %w", err)
	}
	return c, nil
}

// RemoveCredential deletes a credential by name.
func (m *Manager) RemoveCredential(ctx context.Context, name string) error {
	if err := m.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("op=keypool.remove: %w", err)
	}
	return nil
}

// Status lists all credentials, eligible or not, in selection order followed
// by exceeded ones.
func (m *Manager) Status(ctx context.Context) ([]domain.Credential, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=keypool.status: %w", err)
	}
	out := Rank(all)
	for _, c := range all {
		if c.QuotaExceeded {
			out = append(out, c)
		}
	}
	return out, nil
}

// SeedFromConfig adds env-provided keys as env-key-N and the purpose keys as
// purpose-<purpose>, reserving the latter. Existing names are left untouched.
func (m *Manager) SeedFromConfig(ctx context.Context, keys []string, purposeKeys map[domain.Purpose]string) (int, error) {
	added := 0
	add := func(name, value string) error {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		_, err := m.AddCredential(ctx, name, value)
		switch {
		case err == nil:
			added++
			return nil
		case errors.Is(err, domain.ErrDuplicateName):
			return nil
		default:
			return err
		}
	}
	for i, k := range keys {
		if err := add(fmt.Sprintf("env-key-%d", i+1), k); err != nil {
			return added, err
		}
	}
	for purpose, k := range purposeKeys {
		name := "purpose-" + string(purpose)
		if err := add(name, k); err != nil {
			return added, err
		}
		m.Reserve(purpose, name)
	}
	return added, nil
}
