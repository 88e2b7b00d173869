package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// KeyPool is the part of keypool.Manager exposed to operators.
type KeyPool interface {
	AddCredential(ctx context.Context, name, value string) (domain.Credential, error)
	RemoveCredential(ctx context.Context, name string) error
	ResetAll(ctx context.Context) (int64, error)
	Status(ctx context.Context) ([]domain.Credential, error)
}

// KeyInput adds one credential.
type KeyInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Value string `json:"value" validate:"required,min=8"`
}

// KeyView is a credential with its secret masked.
type KeyView struct {
	Name          string     `json:"name"`
	Key           string     `json:"key"`
	UsageCount    int64      `json:"usageCount"`
	QuotaExceeded bool       `json:"quotaExceeded"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
	ResetAt       *time.Time `json:"resetAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func viewOf(c domain.Credential) KeyView {
	return KeyView{
		Name:          c.Name,
		Key:           c.Masked(),
		UsageCount:    c.UsageCount,
		QuotaExceeded: c.QuotaExceeded,
		LastUsedAt:    c.LastUsedAt,
		ResetAt:       c.ResetAt,
		CreatedAt:     c.CreatedAt,
	}
}

// KeyService exposes the credential pool to the HTTP API and the CLI.
type KeyService struct {
	Pool KeyPool
}

func NewKeyService(p KeyPool) KeyService { return KeyService{Pool: p} }

// List returns every credential in selection order, exceeded ones last.
func (s KeyService) List(ctx domain.Context) ([]KeyView, error) {
	creds, err := s.Pool.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]KeyView, 0, len(creds))
	for _, c := range creds {
		out = append(out, viewOf(c))
	}
	return out, nil
}

func (s KeyService) Add(ctx domain.Context, in KeyInput) (KeyView, error) {
	c, err := s.Pool.AddCredential(ctx, in.Name, in.Value)
	if err != nil {
		return KeyView{}, fmt.Errorf("op=usecase.KeyService.Add: %w", err)
	}
	return viewOf(c), nil
}

func (s KeyService) Remove(ctx domain.Context, name string) error {
	return s.Pool.RemoveCredential(ctx, name)
}

// Reset clears usage and exhaustion on all credentials and reports how many were touched.
func (s KeyService) Reset(ctx domain.Context) (int64, error) {
	return s.Pool.ResetAll(ctx)
}

// ReadinessCheck represents a single readiness probe result used by handlers.
type ReadinessCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}
