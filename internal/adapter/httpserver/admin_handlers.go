package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

type topicRequest struct {
	Topic string `json:"topic" validate:"required,max=300"`
}

type featuredRequest struct {
	Featured bool `json:"featured"`
}

// bind decodes and validates a JSON body, writing the error response itself.
func bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	res, err := decodeBody(w, r, dst)
	if err != nil {
		writeError(w, r, err, nil)
		return false
	}
	if !res.Valid {
		writeError(w, r, res.err(), res.Errors)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, res := ValidateID("id", chi.URLParam(r, "id"))
	if !res.Valid {
		writeError(w, r, res.err(), res.Errors)
		return 0, false
	}
	return id, true
}

// AdminListPosts handles GET /v1/admin/posts with an optional status filter.
func (s *Server) AdminListPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, page, res := postFilter(r)
		if !res.Valid {
			writeError(w, r, res.err(), res.Errors)
			return
		}
		status := r.URL.Query().Get("status")
		if res := ValidateStatus(status); !res.Valid {
			writeError(w, r, res.err(), res.Errors)
			return
		}
		f.Status = domain.PostStatus(status)
		s.listPosts(w, r, f, page)
	}
}

func (s *Server) AdminCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in usecase.PostInput
		if !bind(w, r, &in) {
			return
		}
		p, err := s.Posts.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) AdminGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := s.Posts.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) AdminUpdatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var in usecase.PostInput
		if !bind(w, r, &in) {
			return
		}
		p, err := s.Posts.Update(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) AdminDeletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.Posts.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdminPublishPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := s.Posts.Publish(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) AdminFeaturePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var in featuredRequest
		if !bind(w, r, &in) {
			return
		}
		p, err := s.Posts.SetFeatured(r.Context(), id, in.Featured)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// AdminEnhancePost handles POST /v1/admin/posts/{id}/enhance. Suggestions
// are returned for review; the post is not modified.
func (s *Server) AdminEnhancePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		enh, err := s.Content.Enhance(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, enh)
	}
}

func (s *Server) AdminCreateCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in usecase.CategoryInput
		if !bind(w, r, &in) {
			return
		}
		c, err := s.Categories.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func (s *Server) AdminDeleteCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.Categories.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminGenerate handles POST /v1/admin/generate: one article on one topic.
func (s *Server) AdminGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in topicRequest
		if !bind(w, r, &in) {
			return
		}
		res, err := s.Content.GenerateAndProcess(r.Context(), in.Topic)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) AdminOutline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in topicRequest
		if !bind(w, r, &in) {
			return
		}
		out, fallback, err := s.Content.PreviewOutline(r.Context(), in.Topic)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"topic": in.Topic, "outline": out.Outline, "fallback": fallback})
	}
}

func (s *Server) AdminTrending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics := s.Content.TrendingTopics(r.Context())
		fallback := len(topics) > 0 && strings.HasPrefix(topics[0].Topic, usecase.FallbackPrefix)
		writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "fallback": fallback})
	}
}

func (s *Server) AdminAnalytics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Analytics.Dashboard(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) AdminInsights() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Analytics.AnalyzeTraffic(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) AdminListKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := s.Keys.List(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if keys == nil {
			keys = []usecase.KeyView{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": keys})
	}
}

func (s *Server) AdminAddKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in usecase.KeyInput
		if !bind(w, r, &in) {
			return
		}
		k, err := s.Keys.Add(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("api key added", "name", k.Name)
		writeJSON(w, http.StatusCreated, k)
	}
}

func (s *Server) AdminRemoveKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if err := s.Keys.Remove(r.Context(), name); err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("api key removed", "name", name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdminResetKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Keys.Reset(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"reset": n})
	}
}

func (s *Server) AdminSchedulerStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Jobs.Status(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": st})
	}
}

// AdminRunJob handles POST /v1/admin/scheduler/{job}/run.
func (s *Server) AdminRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Jobs.RunJob(r.Context(), chi.URLParam(r, "job"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
