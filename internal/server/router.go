// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/maruel/postdb/internal/server/handlers"
	"github.com/maruel/postdb/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router.
// Serves API endpoints at /api/* and uploaded media at /media/*.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, limiters *ratelimit.Config) http.Handler {
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(cfg.Version)
	ah := handlers.NewAuthHandler(svc.Users, cfg.JWTSecret)
	ph := handlers.NewPostHandler(svc.Posts, svc.Media)
	mh := handlers.NewMediaHandler(svc.Media, cfg.Quotas.MaxUploadBytes)

	// Health check
	mux.Handle("GET /api/health", Wrap(hh.Health, cfg, limiters))

	// Auth endpoints
	mux.Handle("POST /api/auth/register", Wrap(ah.Register, cfg, limiters))
	mux.Handle("POST /api/auth/login", Wrap(ah.Login, cfg, limiters))
	mux.Handle("POST /api/auth/logout", WrapAuth(ah.Logout, svc, cfg, limiters))
	mux.Handle("GET /api/auth/me", WrapAuth(ah.Me, svc, cfg, limiters))

	// Posts endpoints
	mux.Handle("GET /api/posts", Wrap(ph.ListPosts, cfg, limiters))
	mux.Handle("GET /api/posts/{id}", Wrap(ph.GetPost, cfg, limiters))
	mux.Handle("POST /api/posts", WrapAuth(ph.CreatePost, svc, cfg, limiters))
	mux.Handle("PUT /api/posts/{id}", WrapAuth(ph.UpdatePost, svc, cfg, limiters))
	mux.Handle("DELETE /api/posts/{id}", WrapAuth(ph.DeletePost, svc, cfg, limiters))

	// Media endpoints
	mux.Handle("POST /api/media", WrapAuthRaw(mh.Upload, svc, cfg, limiters))
	mux.HandleFunc("GET /media/{ref}", mh.Serve)

	return mux
}
