package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func (v ValidationResult) err() error {
	if v.Valid {
		return nil
	}
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, strings.Join(msgs, "; "))
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// Page is a parsed page/limit pair.
type Page struct {
	Page   int
	Limit  int
	Offset int
}

// ValidatePagination parses the page and limit query parameters. Missing
// values default to page 1 and 10 items.
func ValidatePagination(page, limit string) (Page, ValidationResult) {
	p := Page{Page: 1, Limit: defaultPageSize}
	var errs []ValidationError
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			errs = append(errs, ValidationError{Field: "page", Code: "INVALID_FORMAT", Message: "page must be a positive integer"})
		} else {
			p.Page = n
		}
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxPageSize {
			errs = append(errs, ValidationError{Field: "limit", Code: "INVALID_FORMAT", Message: fmt.Sprintf("limit must be between 1 and %d", maxPageSize)})
		} else {
			p.Limit = n
		}
	}
	if len(errs) > 0 {
		return Page{}, ValidationResult{Valid: false, Errors: errs}
	}
	p.Offset = (p.Page - 1) * p.Limit
	return p, ValidationResult{Valid: true}
}

// ValidateID parses a positive numeric path id.
func ValidateID(field, raw string) (int64, ValidationResult) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, ValidationResult{Errors: []ValidationError{{Field: field, Code: "INVALID_FORMAT", Message: field + " must be a positive integer"}}}
	}
	return id, ValidationResult{Valid: true}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateSlug accepts lowercase alphanumerics joined by single hyphens.
func ValidateSlug(slug string) ValidationResult {
	if slug == "" || len(slug) > 200 || !slugPattern.MatchString(slug) {
		return ValidationResult{Errors: []ValidationError{{Field: "slug", Code: "INVALID_FORMAT", Message: "slug is malformed"}}}
	}
	return ValidationResult{Valid: true}
}

// ValidateStatus accepts an empty filter or a known post status.
func ValidateStatus(status string) ValidationResult {
	if status == "" || domain.PostStatus(status).Valid() {
		return ValidationResult{Valid: true}
	}
	return ValidationResult{Errors: []ValidationError{{Field: "status", Code: "INVALID_VALUE", Message: "status must be one of: draft, published"}}}
}

// decodeBody reads a JSON body into dst and validates its struct tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) (ValidationResult, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ValidationResult{}, fmt.Errorf("%w: request body required", domain.ErrInvalidArgument)
		}
		return ValidationResult{}, fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidArgument, err)
	}
	return validateStruct(dst), nil
}

func validateStruct(v any) ValidationResult {
	err := getValidator().Struct(v)
	if err == nil {
		return ValidationResult{Valid: true}
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationResult{Errors: []ValidationError{{Field: "body", Code: "INVALID", Message: err.Error()}}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    strings.ToUpper(fe.Tag()),
			Message: fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()),
		})
	}
	return ValidationResult{Errors: out}
}
