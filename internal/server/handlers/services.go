// Package handlers implements the JSON API endpoints.
package handlers

import (
	"github.com/maruel/postdb/internal/media"
	"github.com/maruel/postdb/internal/storage"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Users *storage.UserService
	Posts *storage.PostService
	Media *media.Store
}

// Config holds configuration values needed by handlers.
type Config struct {
	JWTSecret []byte
	Version   string
	Quotas    storage.Quotas
}
