// Package models defines the core data structures used throughout the application.
package models

import (
	"time"

	"github.com/maruel/postdb/internal/jsonldb"
)

// UnknownAuthor is the display name used when a post's author can't be resolved.
const UnknownAuthor = "Unknown"

// User represents a registered account (persistent fields only, no credentials).
type User struct {
	ID       jsonldb.ID `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Created  time.Time  `json:"created"`
}

// Post represents a piece of user content.
type Post struct {
	ID         jsonldb.ID `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	AuthorID   jsonldb.ID `json:"author_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at,omitzero"`
	MediaPath  string     `json:"media_path,omitempty"` // Opaque reference to an uploaded asset
}

// PostView is a Post joined with its author's display name.
type PostView struct {
	Post
	AuthorName string `json:"author_name"`
}
