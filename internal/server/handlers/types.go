// Request and response types of the JSON API.

package handlers

import (
	"github.com/maruel/postdb/internal/errors"
	"github.com/maruel/postdb/internal/jsonldb"
	"github.com/maruel/postdb/internal/models"
)

// Validatable is implemented by request types that can validate their fields.
type Validatable interface {
	Validate() error
}

// HealthRequest is the request for the health check.
type HealthRequest struct{}

// Validate implements Validatable.
func (r *HealthRequest) Validate() error { return nil }

// HealthResponse reports server status.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements Validatable.
func (r *RegisterRequest) Validate() error {
	switch {
	case r.Username == "":
		return errors.MissingField("username")
	case r.Email == "":
		return errors.MissingField("email")
	case r.Password == "":
		return errors.MissingField("password")
	}
	return nil
}

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements Validatable.
func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return errors.MissingField("email or password")
	}
	return nil
}

// AuthResponse is returned on successful register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// LogoutRequest ends the session client side.
type LogoutRequest struct{}

// Validate implements Validatable.
func (r *LogoutRequest) Validate() error { return nil }

// MeRequest returns the authenticated user.
type MeRequest struct{}

// Validate implements Validatable.
func (r *MeRequest) Validate() error { return nil }

// OKResponse acknowledges an operation without a payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ListPostsRequest lists every post.
type ListPostsRequest struct{}

// Validate implements Validatable.
func (r *ListPostsRequest) Validate() error { return nil }

// ListPostsResponse holds posts, newest first.
type ListPostsResponse struct {
	Posts []models.PostView `json:"posts"`
}

// GetPostRequest fetches a single post.
type GetPostRequest struct {
	ID jsonldb.ID `path:"id"`
}

// Validate implements Validatable.
func (r *GetPostRequest) Validate() error {
	return validatePostID(r.ID)
}

// CreatePostRequest creates a post owned by the caller.
type CreatePostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	MediaPath string `json:"media_path,omitempty"`
}

// Validate implements Validatable.
func (r *CreatePostRequest) Validate() error {
	if r.Title == "" {
		return errors.MissingField("title")
	}
	return nil
}

// UpdatePostRequest replaces a post's title and content.
type UpdatePostRequest struct {
	ID        jsonldb.ID `path:"id" json:"-"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	MediaPath string     `json:"media_path,omitempty"`
}

// Validate implements Validatable.
func (r *UpdatePostRequest) Validate() error {
	if err := validatePostID(r.ID); err != nil {
		return err
	}
	if r.Title == "" {
		return errors.MissingField("title")
	}
	return nil
}

// DeletePostRequest deletes a post owned by the caller.
type DeletePostRequest struct {
	ID jsonldb.ID `path:"id"`
}

// Validate implements Validatable.
func (r *DeletePostRequest) Validate() error {
	return validatePostID(r.ID)
}

// UploadMediaResponse is returned by a media upload.
type UploadMediaResponse struct {
	MediaPath string `json:"media_path"`
	Size      int64  `json:"size"`
}

func validatePostID(id jsonldb.ID) error {
	if id.IsZero() {
		return errors.BadRequest("invalid post id")
	}
	return nil
}
