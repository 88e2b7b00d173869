// Package gemini performs completion requests against a generateContent
// endpoint, rotating pool credentials and retrying transient failures.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/ai"
	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

const provider = "gemini"

// CredentialPool is the slice of the key pool the executor needs.
type CredentialPool interface {
	Candidates(ctx context.Context, purpose domain.Purpose) ([]domain.Credential, error)
	RecordSuccess(ctx context.Context, cred domain.Credential) error
	RecordExhaustion(ctx context.Context, cred domain.Credential) error
}

// Pacer blocks until a call on key may proceed.
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// Executor runs one logical completion request per Execute call.
type Executor struct {
	pool     CredentialPool
	hc       *http.Client
	baseURL  string
	model    string
	policy   domain.RetryPolicy
	pacer    Pacer
	budget   tokencount.Budget
	newTimer func() backoff.Timer
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option { return func(e *Executor) { e.hc = hc } }

// WithPacer paces calls per credential before they are sent.
func WithPacer(p Pacer) Option { return func(e *Executor) { e.pacer = p } }

// WithTimer supplies the timer used for backoff waits.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(e *Executor) { e.newTimer = newTimer }
}

// WithClock sets the clock used for deadline checks.
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// WithBudget overrides the prompt token budget.
func WithBudget(b tokencount.Budget) Option { return func(e *Executor) { e.budget = b } }

// New builds an Executor from cfg over pool.
func New(cfg config.ExecutorConfig, pool CredentialPool, opts ...Option) *Executor {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	e := &Executor{
		pool: pool,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		policy:  cfg.Policy.Normalize(),
		budget:  tokencount.NewBudget(cfg.PromptMaxTokens),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Complete implements domain.Completer.
func (e *Executor) Complete(ctx context.Context, prompt string, purpose domain.Purpose) (string, error) {
	return e.Execute(ctx, prompt, purpose)
}

// Execute returns the generated text for prompt.
func (e *Executor) Execute(ctx context.Context, prompt string, purpose domain.Purpose) (string, error) {
	text, _, err := e.ExecuteWithLog(ctx, prompt, purpose)
	return text, err
}

// ExecuteWithLog is Execute plus the attempt history of the request.
func (e *Executor) ExecuteWithLog(ctx context.Context, prompt string, purpose domain.Purpose) (string, domain.AttemptLog, error) {
	tracer := otel.Tracer("gemini.executor")
	ctx, span := tracer.Start(ctx, "gemini.Execute", trace.WithAttributes(
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", e.model),
		attribute.String("ai.purpose", string(purpose)),
	))
	defer span.End()

	text, log, err := e.execute(ctx, prompt, purpose)
	span.SetAttributes(attribute.Int("ai.attempts", log.Calls()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, log, err
}

func (e *Executor) execute(ctx context.Context, prompt string, purpose domain.Purpose) (string, domain.AttemptLog, error) {
	lg := observability.LoggerFromContext(ctx)
	if strings.TrimSpace(prompt) == "" {
		return "", nil, fmt.Errorf("op=gemini.Execute: %w: empty prompt", domain.ErrInvalidArgument)
	}
	if _, err := e.budget.Check(prompt); err != nil {
		return "", nil, fmt.Errorf("op=gemini.Execute: %w", err)
	}
	rotation, err := e.pool.Candidates(ctx, purpose)
	if err != nil {
		return "", nil, fmt.Errorf("op=gemini.Execute: %w", err)
	}
	if len(rotation) == 0 {
		return "", nil, fmt.Errorf("op=gemini.Execute: %w", domain.ErrPoolExhausted)
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", nil, fmt.Errorf("op=gemini.Execute: %w", err)
	}

	var (
		log    domain.AttemptLog
		text   string
		index  int
		bo     = &attemptBackOff{}
		span   = trace.SpanFromContext(ctx)
		policy = e.policy
	)

	op := func() error {
		if len(rotation) == 0 {
			return backoff.Permanent(fmt.Errorf("%w: every candidate reported quota exhaustion", domain.ErrPoolExhausted))
		}
		cred := rotation[index%len(rotation)]
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, provider+":"+cred.Name); err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrDeadlineExceeded, err))
				}
				return backoff.Permanent(err)
			}
		}

		out, att := e.attempt(ctx, index, cred, body)
		observability.ObserveAttempt(provider, string(purpose), string(att.Outcome), att.Duration)
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("index", att.Index),
			attribute.String("credential", att.Credential),
			attribute.String("outcome", string(att.Outcome)),
			attribute.Int("status", att.Status),
		))

		if att.Outcome != domain.OutcomeSuccess && ctx.Err() != nil {
			log = append(log, att)
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrDeadlineExceeded, ctx.Err()))
		}

		switch att.Outcome {
		case domain.OutcomeSuccess:
			log = append(log, att)
			text = out
			if err := e.pool.RecordSuccess(ctx, cred); err != nil {
				lg.Error("record credential success failed", slog.String("credential", cred.Name), slog.Any("error", err))
			}
			return nil

		case domain.OutcomeQuota:
			log = append(log, att)
			lg.Warn("credential quota exhausted, rotating",
				slog.String("credential", cred.Name),
				slog.Int("attempt", index),
				slog.Any("error", att.Err))
			if err := e.pool.RecordExhaustion(ctx, cred); err != nil {
				lg.Error("record credential exhaustion failed", slog.String("credential", cred.Name), slog.Any("error", err))
			}
			rotation = removeCredential(rotation, cred.ID)
			if len(rotation) == 0 {
				return backoff.Permanent(fmt.Errorf("%w: %w", domain.ErrPoolExhausted, att.Err))
			}
			if policy.Exhausted(index) {
				return backoff.Permanent(&RetryError{Attempts: index + 1, MaxRetries: policy.MaxRetries, Last: att.Err})
			}
			index++
			bo.arm(0)
			return att.Err

		case domain.OutcomeThrottled, domain.OutcomeNetwork:
			if policy.Exhausted(index) {
				log = append(log, att)
				lg.Warn("provider retries exhausted",
					slog.String("credential", cred.Name),
					slog.Int("attempts", index+1),
					slog.Any("error", att.Err))
				return backoff.Permanent(&RetryError{Attempts: index + 1, MaxRetries: policy.MaxRetries, Last: att.Err})
			}
			wait := policy.Wait(att.Outcome, index)
			if deadline, ok := ctx.Deadline(); ok && e.now().Add(wait).After(deadline) {
				log = append(log, att)
				return backoff.Permanent(fmt.Errorf("%w: next wait %s passes the request deadline: %v", domain.ErrDeadlineExceeded, wait, att.Err))
			}
			att.Wait = wait
			log = append(log, att)
			lg.Warn("transient provider failure, backing off",
				slog.String("credential", cred.Name),
				slog.Int("attempt", index),
				slog.String("outcome", string(att.Outcome)),
				slog.Duration("wait", wait),
				slog.Any("error", att.Err))
			index++
			bo.arm(wait)
			return att.Err

		default:
			log = append(log, att)
			return backoff.Permanent(fmt.Errorf("%w: %w", domain.ErrPermanentFailure, att.Err))
		}
	}

	notify := func(err error, wait time.Duration) {
		if wait <= 0 || len(log) == 0 {
			return
		}
		observability.ObserveRetryWait(string(log[len(log)-1].Outcome))
	}

	var timer backoff.Timer
	if e.newTimer != nil {
		timer = e.newTimer()
	}
	err = backoff.RetryNotifyWithTimer(op, backoff.WithContext(bo, ctx), notify, timer)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			if !errors.Is(err, domain.ErrDeadlineExceeded) {
				err = fmt.Errorf("%w: %v", domain.ErrDeadlineExceeded, err)
			}
		}
		if errors.Is(err, domain.ErrPoolExhausted) {
			observability.ObservePoolExhausted()
		}
		lg.Error("gemini request failed",
			slog.String("purpose", string(purpose)),
			slog.Int("attempts", log.Calls()),
			slog.Any("error", err))
		return "", log, fmt.Errorf("op=gemini.Execute: %w", err)
	}
	lg.Debug("gemini request succeeded", slog.String("purpose", string(purpose)), slog.Int("attempts", log.Calls()))
	return text, log, nil
}

// attempt performs one network call with cred.
func (e *Executor) attempt(ctx context.Context, index int, cred domain.Credential, body []byte) (string, domain.Attempt) {
	att := domain.Attempt{Index: index, Credential: cred.Name}
	start := time.Now()

	finish := func(o domain.AttemptOutcome, status int, err error) domain.Attempt {
		att.Outcome = o
		att.Status = status
		att.Err = err
		att.Duration = time.Since(start)
		return att
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", finish(domain.OutcomePermanent, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", cred.Value)

	resp, err := e.hc.Do(req)
	if err != nil {
		return "", finish(domain.OutcomeNetwork, 0, scrubURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", finish(domain.OutcomeNetwork, resp.StatusCode, err)
	}

	outcome, pe := classify(resp.StatusCode, raw)
	if pe != nil {
		return "", finish(outcome, resp.StatusCode, pe)
	}
	text, err := ai.ExtractText(raw)
	if err != nil {
		return "", finish(domain.OutcomePermanent, resp.StatusCode, err)
	}
	return text, finish(domain.OutcomeSuccess, resp.StatusCode, nil)
}

func (e *Executor) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", e.baseURL, url.PathEscape(e.model))
}

// scrubURLError keeps the transport cause without the request URL.
func scrubURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

func removeCredential(creds []domain.Credential, id int64) []domain.Credential {
	out := make([]domain.Credential, 0, len(creds))
	for _, c := range creds {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}
