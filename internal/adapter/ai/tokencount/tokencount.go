// Package tokencount estimates prompt sizes with tiktoken-go so oversized
// prompts are rejected before they spend a provider call.
//
// Gemini does not publish a tiktoken encoding; cl100k_base tracks its
// SentencePiece counts closely enough for a budget guard.
package tokencount

import (
	"fmt"
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

const defaultEncoding = "cl100k_base"

func init() {
	// Embedded BPE ranks; no download at first use.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter counts tokens with a lazily loaded, shared encoding.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) encoding() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(defaultEncoding)
	})
	return c.enc, c.err
}

// Count returns the token count of text, falling back to a 4 chars/token
// estimate if the encoding cannot be loaded.
func (c *Counter) Count(text string) int {
	enc, err := c.encoding()
	if err != nil {
		slog.Warn("token encoding unavailable, estimating", slog.Any("error", err))
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Budget rejects prompts above Max tokens. A zero Max disables the check.
type Budget struct {
	Max     int
	Counter *Counter
}

// NewBudget returns a Budget with its own counter.
func NewBudget(max int) Budget { return Budget{Max: max, Counter: NewCounter()} }

// Check returns domain.ErrInvalidArgument when prompt exceeds the budget.
func (b Budget) Check(prompt string) (int, error) {
	if b.Max <= 0 {
		return 0, nil
	}
	counter := b.Counter
	if counter == nil {
		counter = DefaultCounter
	}
	n := counter.Count(prompt)
	if n > b.Max {
		return n, fmt.Errorf("op=tokencount.Check: %w: prompt is %d tokens, budget %d", domain.ErrInvalidArgument, n, b.Max)
	}
	return n, nil
}

// DefaultCounter is shared by callers that don't need their own.
var DefaultCounter = NewCounter()
