package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New(validator.WithRequiredStructEnabled()) })
	return vld
}

// Decode extracts the JSON object from model text, decodes it into T and
// validates T's struct tags. Extraction failures are *ParseError; decoding
// or validation failures wrap domain.ErrSchemaInvalid.
func Decode[T any](text string) (T, error) {
	var out T
	raw, err := ExtractJSONBytes(text)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("op=ai.Decode: %w: %v", domain.ErrSchemaInvalid, err)
	}
	if err := Validate(out); err != nil {
		return out, err
	}
	return out, nil
}

// Validate checks v against its validate tags.
func Validate(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("op=ai.Validate: %w: %s", domain.ErrSchemaInvalid, strings.Join(fields, ", "))
	}
	return fmt.Errorf("op=ai.Validate: %w: %v", domain.ErrSchemaInvalid, err)
}
