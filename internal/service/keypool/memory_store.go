package keypool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*domain.Credential
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byName: map[string]*domain.Credential{}}
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Credential, 0, len(s.byName))
	for _, c := range s.byName {
		out = append(out, clone(*c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetByName(_ context.Context, name string) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byName[name]
	if !ok {
		return domain.Credential{}, fmt.Errorf("credential %q: %w", name, domain.ErrNotFound)
	}
	return clone(*c), nil
}

func (s *MemoryStore) Insert(_ context.Context, name, value string, at time.Time) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[name]; ok {
		return domain.Credential{}, fmt.Errorf("credential %q: %w", name, domain.ErrDuplicateName)
	}
	s.nextID++
	c := &domain.Credential{ID: s.nextID, Name: name, Value: value, CreatedAt: at}
	s.byName[name] = c
	return clone(*c), nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(c *domain.Credential) {
		c.UsageCount++
		c.LastUsedAt = &at
	})
}

func (s *MemoryStore) MarkExceeded(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(c *domain.Credential) {
		c.QuotaExceeded = true
		c.LastUsedAt = &at
	})
}

func (s *MemoryStore) ResetAll(_ context.Context, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byName {
		c.UsageCount = 0
		c.QuotaExceeded = false
		resetAt := at
		c.ResetAt = &resetAt
	}
	return int64(len(s.byName)), nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("credential %q: %w", name, domain.ErrNotFound)
	}
	delete(s.byName, name)
	return nil
}

func (s *MemoryStore) update(id int64, fn func(*domain.Credential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byName {
		if c.ID == id {
			fn(c)
			return nil
		}
	}
	return fmt.Errorf("credential id %d: %w", id, domain.ErrNotFound)
}

func clone(c domain.Credential) domain.Credential {
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		c.LastUsedAt = &t
	}
	if c.ResetAt != nil {
		t := *c.ResetAt
		c.ResetAt = &t
	}
	return c
}
