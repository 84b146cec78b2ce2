package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/blog/backend/internal/setup"
	mw "github.com/itchan-dev/blog/shared/middleware"
	"github.com/itchan-dev/blog/shared/middleware/metrics"
)

// JSON API and raw image bytes only, nothing to script or style.
const backendCSP = "default-src 'none'; img-src 'self'; frame-ancestors 'none'"

// New creates the chi router with all routes.
// A limiter passed to .Use is shared by every route of that group.
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()
	cfg := deps.Config.Public

	r.Use(mw.RequestLogger)
	r.Use(metrics.Middleware)
	r.Use(mw.SecurityHeaders(cfg.SecureCookies, backendCSP))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(authMw.OptionalAuth())

		v1.Route("/auth", func(auth chi.Router) {
			auth.With(mw.RateLimit(deps.LoginLimiter, mw.GetIP)).Post("/login", h.Login)
			auth.Post("/logout", h.Logout)
		})

		v1.Route("/posts", func(posts chi.Router) {
			// Reads are public and limited per IP.
			posts.Group(func(public chi.Router) {
				public.Use(mw.RateLimit(deps.ReadLimiter, mw.GetIP))
				public.Get("/", h.ListPosts)
				public.Get("/{id}", h.GetPost)
				public.Get("/{id}/image", h.GetPostImage)
			})

			posts.Group(func(admin chi.Router) {
				admin.Use(authMw.AdminOnly())
				admin.Post("/", h.CreatePost)
				admin.Delete("/{id}", h.DeletePost)
				admin.Put("/{id}/image", h.UpdatePostImage)
				admin.Delete("/{id}/image", h.DeletePostImage)
			})
		})
	})

	return r
}
