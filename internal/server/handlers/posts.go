package handlers

import (
	"context"
	"slices"
	"strings"

	"github.com/maruel/postdb/internal/errors"
	"github.com/maruel/postdb/internal/media"
	"github.com/maruel/postdb/internal/models"
	"github.com/maruel/postdb/internal/storage"
	"github.com/microcosm-cc/bluemonday"
)

// PostHandler handles post requests.
type PostHandler struct {
	posts   *storage.PostService
	media   *media.Store
	title   *bluemonday.Policy
	content *bluemonday.Policy
}

// NewPostHandler creates a new post handler.
func NewPostHandler(posts *storage.PostService, store *media.Store) *PostHandler {
	return &PostHandler{
		posts:   posts,
		media:   store,
		title:   bluemonday.StrictPolicy(),
		content: bluemonday.UGCPolicy(),
	}
}

// ListPosts returns all posts, newest first.
func (h *PostHandler) ListPosts(ctx context.Context, _ *ListPostsRequest) (*ListPostsResponse, error) {
	views, err := h.posts.List(ctx)
	if err != nil {
		return nil, toAPIError(err, "post")
	}
	// Storage order is creation order.
	slices.Reverse(views)
	return &ListPostsResponse{Posts: views}, nil
}

// GetPost returns a single post with its author's name.
func (h *PostHandler) GetPost(ctx context.Context, req *GetPostRequest) (*models.PostView, error) {
	v, err := h.posts.GetView(ctx, req.ID)
	if err != nil {
		return nil, toAPIError(err, "post")
	}
	return v, nil
}

// CreatePost creates a post owned by user.
func (h *PostHandler) CreatePost(ctx context.Context, user *models.User, req *CreatePostRequest) (*models.Post, error) {
	title, content, err := h.sanitize(req.Title, req.Content, req.MediaPath)
	if err != nil {
		return nil, err
	}
	p, err := h.posts.Create(ctx, title, content, user.ID, req.MediaPath)
	if err != nil {
		return nil, toAPIError(err, "post")
	}
	return p, nil
}

// UpdatePost replaces the title and content of a post owned by user.
func (h *PostHandler) UpdatePost(ctx context.Context, user *models.User, req *UpdatePostRequest) (*models.Post, error) {
	title, content, err := h.sanitize(req.Title, req.Content, req.MediaPath)
	if err != nil {
		return nil, err
	}
	p, err := h.posts.Update(ctx, req.ID, user.ID, title, content, req.MediaPath)
	if err != nil {
		return nil, toAPIError(err, "post")
	}
	return p, nil
}

// DeletePost deletes a post owned by user.
func (h *PostHandler) DeletePost(ctx context.Context, user *models.User, req *DeletePostRequest) (*OKResponse, error) {
	if err := h.posts.Delete(ctx, req.ID, user.ID); err != nil {
		return nil, toAPIError(err, "post")
	}
	return &OKResponse{OK: true}, nil
}

// sanitize strips markup from the title, restricts the content to safe HTML
// and checks that mediaPath names a stored file.
func (h *PostHandler) sanitize(title, content, mediaPath string) (string, string, error) {
	title = strings.TrimSpace(h.title.Sanitize(title))
	if title == "" {
		return "", "", errors.MissingField("title")
	}
	content = h.content.Sanitize(content)
	if mediaPath != "" {
		ref, err := media.ParsePath(mediaPath)
		if err != nil || !h.media.Exists(ref) {
			return "", "", errors.BadRequest("media_path does not name an uploaded file").WithDetail("media_path", mediaPath)
		}
	}
	return title, content, nil
}
