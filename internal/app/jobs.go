package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

// Job names.
const (
	JobContentGeneration = "content-generation"
	JobKeyReset          = "api-key-reset"
	JobVisitorCleanup    = "visitor-cleanup"
)

// ContentRunner produces a batch of articles.
type ContentRunner interface {
	RunAutomated(ctx context.Context) (usecase.RunReport, error)
}

// KeyResetter clears credential usage.
type KeyResetter interface {
	ResetAll(ctx context.Context) (int64, error)
}

// Cleaner deletes expired analytics rows.
type Cleaner interface {
	CleanupOldData(ctx context.Context) (int64, error)
}

// BuildJobs wires the recurring jobs. A nil dependency leaves its job out.
func BuildJobs(cfg config.Config, content ContentRunner, keys KeyResetter, cleanup Cleaner) []Job {
	var jobs []Job
	if content != nil {
		jobs = append(jobs, Job{
			Name:     JobContentGeneration,
			Interval: cfg.ContentInterval,
			Run: func(ctx context.Context) (string, error) {
				rep, err := content.RunAutomated(ctx)
				detail := fmt.Sprintf("generated=%d published=%d failed=%d", rep.Generated, rep.Published, rep.Failed)
				if err != nil {
					return detail, err
				}
				if rep.Generated == 0 && rep.Failed > 0 {
					return detail, fmt.Errorf("no articles generated: %s", strings.Join(rep.Errors, "; "))
				}
				return detail, nil
			},
		})
	}
	if keys != nil {
		jobs = append(jobs, Job{
			Name:     JobKeyReset,
			Interval: cfg.KeyResetInterval,
			Run: func(ctx context.Context) (string, error) {
				n, err := keys.ResetAll(ctx)
				return fmt.Sprintf("reset=%d", n), err
			},
		})
	}
	if cleanup != nil {
		jobs = append(jobs, Job{
			Name:     JobVisitorCleanup,
			Interval: cfg.CleanupInterval,
			Run: func(ctx context.Context) (string, error) {
				n, err := cleanup.CleanupOldData(ctx)
				return fmt.Sprintf("deleted=%d", n), err
			},
		})
	}
	return jobs
}
