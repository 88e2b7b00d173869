package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

type postPage struct {
	Items []domain.Post `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// postFilter reads page, limit, category and featured from the query.
func postFilter(r *http.Request) (domain.PostFilter, Page, ValidationResult) {
	q := r.URL.Query()
	page, res := ValidatePagination(q.Get("page"), q.Get("limit"))
	if !res.Valid {
		return domain.PostFilter{}, Page{}, res
	}
	f := domain.PostFilter{Offset: page.Offset, Limit: page.Limit}
	if raw := q.Get("category"); raw != "" {
		id, res := ValidateID("category", raw)
		if !res.Valid {
			return domain.PostFilter{}, Page{}, res
		}
		f.CategoryID = &id
	}
	if raw := q.Get("featured"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.PostFilter{}, Page{}, ValidationResult{Errors: []ValidationError{{Field: "featured", Code: "INVALID_FORMAT", Message: "featured must be a boolean"}}}
		}
		f.Featured = &b
	}
	return f, page, ValidationResult{Valid: true}
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, f domain.PostFilter, page Page) {
	posts, total, err := s.Posts.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	writeJSON(w, http.StatusOK, postPage{Items: posts, Total: total, Page: page.Page, Limit: page.Limit})
}

// ListPublishedPosts handles GET /v1/posts.
func (s *Server) ListPublishedPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, page, res := postFilter(r)
		if !res.Valid {
			writeError(w, r, res.err(), res.Errors)
			return
		}
		f.Status = domain.PostPublished
		s.listPosts(w, r, f, page)
	}
}

// GetPublishedPost handles GET /v1/posts/{slug}. Drafts are not found.
func (s *Server) GetPublishedPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if res := ValidateSlug(slug); !res.Valid {
			writeError(w, r, res.err(), res.Errors)
			return
		}
		p, err := s.Posts.GetPublished(r.Context(), slug)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// ListCategories handles GET /v1/categories.
func (s *Server) ListCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := s.Categories.List(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if cats == nil {
			cats = []domain.Category{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": cats})
	}
}

// Track handles POST /v1/track. The client address and edge geo headers
// are read from the request, never from the body.
func (s *Server) Track() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v usecase.Visit
		res, err := decodeBody(w, r, &v)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if !res.Valid {
			writeError(w, r, res.err(), res.Errors)
			return
		}
		v.IP = ClientIP(r)
		v.UserAgent = r.UserAgent()
		v.Country, v.City = geoFromHeaders(r)
		out, err := s.Tracker.Track(r.Context(), v)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, out)
	}
}

// Cron handles POST /v1/cron. With force=true every job runs, otherwise
// only the due ones.
func (s *Server) Cron() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force := false
		if raw := r.URL.Query().Get("force"); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, r, ValidationResult{Errors: []ValidationError{{Field: "force", Code: "INVALID_FORMAT", Message: "force must be a boolean"}}}.err(), nil)
				return
			}
			force = b
		}
		results, err := s.Jobs.RunAll(r.Context(), force)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if results == nil {
			results = []domain.JobResult{}
		}
		LoggerFrom(r).Info("cron triggered", "force", force, "jobs_run", len(results))
		writeJSON(w, http.StatusOK, map[string]any{"force": force, "results": results})
	}
}
