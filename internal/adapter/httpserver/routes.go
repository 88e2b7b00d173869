package httpserver

import "github.com/go-chi/chi/v5"

// MountPublic registers the unauthenticated read routes.
func (s *Server) MountPublic(r chi.Router) {
	r.Get("/v1/posts", s.ListPublishedPosts())
	r.Get("/v1/posts/{slug}", s.GetPublishedPost())
	r.Get("/v1/categories", s.ListCategories())
}

// MountTracking registers the visit beacon.
func (s *Server) MountTracking(r chi.Router) {
	if s.Tracker == nil {
		return
	}
	r.Post("/v1/track", s.Track())
}

// MountAdmin registers the admin routes behind Basic auth. Nothing is
// mounted when no admin credentials are configured.
func (s *Server) MountAdmin(r chi.Router) {
	if !s.Cfg.AdminEnabled() {
		return
	}
	r.Route("/v1/admin", func(ar chi.Router) {
		ar.Use(BasicAuth(s.Cfg.AdminUsername, s.Cfg.AdminPasswordHash))

		ar.Get("/posts", s.AdminListPosts())
		ar.Post("/posts", s.AdminCreatePost())
		ar.Get("/posts/{id}", s.AdminGetPost())
		ar.Put("/posts/{id}", s.AdminUpdatePost())
		ar.Delete("/posts/{id}", s.AdminDeletePost())
		ar.Post("/posts/{id}/publish", s.AdminPublishPost())
		ar.Put("/posts/{id}/featured", s.AdminFeaturePost())
		ar.Post("/posts/{id}/enhance", s.AdminEnhancePost())

		ar.Post("/categories", s.AdminCreateCategory())
		ar.Delete("/categories/{id}", s.AdminDeleteCategory())

		ar.Post("/generate", s.AdminGenerate())
		ar.Post("/outline", s.AdminOutline())
		ar.Get("/trending", s.AdminTrending())

		ar.Get("/analytics", s.AdminAnalytics())
		ar.Get("/analytics/insights", s.AdminInsights())

		ar.Get("/keys", s.AdminListKeys())
		ar.Post("/keys", s.AdminAddKey())
		ar.Post("/keys/reset", s.AdminResetKeys())
		ar.Delete("/keys/{name}", s.AdminRemoveKey())

		ar.Get("/scheduler", s.AdminSchedulerStatus())
		ar.Post("/scheduler/{job}/run", s.AdminRunJob())
	})
}

// MountCron registers the cron trigger when a secret is configured.
func (s *Server) MountCron(r chi.Router) {
	if !s.Cfg.CronEnabled() || s.Jobs == nil {
		return
	}
	r.With(CronAuth(s.Cfg.CronSecret)).Post("/v1/cron", s.Cron())
}
