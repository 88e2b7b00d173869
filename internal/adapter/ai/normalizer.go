// Package ai normalizes provider responses: it pulls the generated text out
// of the generateContent envelope and recovers JSON objects from text that
// may be wrapped in code fences or surrounded by prose.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Envelope is the generateContent success body.
type Envelope struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// ExtractText returns candidates[0].content.parts[0].text from a raw body.
// A missing path or blank text is reported as domain.ErrNotFound.
func ExtractText(body []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("op=ai.ExtractText: %w: envelope is not JSON: %v", domain.ErrNotFound, err)
	}
	if len(env.Candidates) == 0 {
		if env.PromptFeedback != nil && env.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("op=ai.ExtractText: %w: prompt blocked (%s)", domain.ErrNotFound, env.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("op=ai.ExtractText: %w: no candidates", domain.ErrNotFound)
	}
	parts := env.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return "", fmt.Errorf("op=ai.ExtractText: %w: no text part", domain.ErrNotFound)
	}
	if strings.TrimSpace(*parts[0].Text) == "" {
		return "", fmt.Errorf("op=ai.ExtractText: %w: empty text", domain.ErrNotFound)
	}
	return *parts[0].Text, nil
}

// ParseError reports text that held no recoverable JSON object.
type ParseError struct {
	Raw     string
	Cleaned string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no valid JSON found in model output (%d bytes): %v", len(e.Raw), e.Err)
}

// Unwrap exposes domain.ErrParse and the decoder error.
func (e *ParseError) Unwrap() []error { return []error{domain.ErrParse, e.Err} }

// StripFences removes Markdown code-fence markers and trims whitespace.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON parses the JSON object in text. It first parses the text with
// fences stripped; failing that, it parses the span from the first '{' to
// the last '}' of the raw text.
func ExtractJSON(text string) (any, error) {
	raw, err := ExtractJSONBytes(text)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &ParseError{Raw: text, Cleaned: string(raw), Err: err}
	}
	return v, nil
}

// ExtractJSONBytes is ExtractJSON returning the validated JSON bytes.
func ExtractJSONBytes(text string) ([]byte, error) {
	cleaned := StripFences(text)
	if json.Valid([]byte(cleaned)) {
		return []byte(cleaned), nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, &ParseError{Raw: text, Cleaned: cleaned, Err: fmt.Errorf("no brace-delimited object")}
	}
	span := text[start : end+1]
	if !json.Valid([]byte(span)) {
		var probe any
		return nil, &ParseError{Raw: text, Cleaned: span, Err: json.Unmarshal([]byte(span), &probe)}
	}
	return []byte(span), nil
}
