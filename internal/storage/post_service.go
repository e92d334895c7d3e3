package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/postdb/internal/jsonldb"
	"github.com/maruel/postdb/internal/models"
)

// PostService handles post creation, listing and owner-only mutation.
type PostService struct {
	table *jsonldb.Table[models.Post]
	users *UserService
}

// NewPostService creates a new post service backed by the JSONL file at path.
// users resolves author references.
func NewPostService(path string, users *UserService, opts ...jsonldb.Option) (*PostService, error) {
	table, err := jsonldb.NewTable[models.Post](path, opts...)
	if err != nil {
		return nil, err
	}
	return &PostService{table: table, users: users}, nil
}

// Create creates a new post owned by authorID. mediaPath may be empty.
//
// The author must exist when the post is created. This is not re-checked
// later, and reading users is not atomic with writing the post.
func (s *PostService) Create(ctx context.Context, title, content string, authorID jsonldb.ID, mediaPath string) (*models.Post, error) {
	if _, err := s.users.FindByID(ctx, authorID); err != nil {
		return nil, fmt.Errorf("author: %w", err)
	}
	post := models.Post{
		ID:        jsonldb.NewID(),
		Title:     title,
		Content:   content,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
		MediaPath: mediaPath,
	}
	if err := s.table.Append(ctx, post); err != nil {
		return nil, err
	}
	return &post, nil
}

// List returns all posts in storage order, joined with their author's name.
func (s *PostService) List(ctx context.Context) ([]models.PostView, error) {
	posts, err := s.table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.users.Names(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, toView(p, names))
	}
	return views, nil
}

// Get retrieves a post by ID.
func (s *PostService) Get(ctx context.Context, id jsonldb.ID) (*models.Post, error) {
	posts, err := s.table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
}

// GetView retrieves a post by ID joined with its author's name.
func (s *PostService) GetView(ctx context.Context, id jsonldb.ID) (*models.PostView, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := models.PostView{Post: *post, AuthorName: models.UnknownAuthor}
	if author, err := s.users.FindByID(ctx, post.AuthorID); err == nil {
		v.AuthorName = author.Username
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &v, nil
}

// Update replaces the title and content of a post owned by requestorID.
//
// The media path is replaced only when mediaPath is not empty.
func (s *PostService) Update(ctx context.Context, id, requestorID jsonldb.ID, title, content, mediaPath string) (*models.Post, error) {
	var updated models.Post
	err := s.table.Modify(ctx, func(posts []models.Post) ([]models.Post, error) {
		i, err := findOwned(posts, id, requestorID)
		if err != nil {
			return nil, err
		}
		p := &posts[i]
		p.Title = title
		p.Content = content
		if mediaPath != "" {
			p.MediaPath = mediaPath
		}
		p.ModifiedAt = time.Now().UTC()
		updated = *p
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a post owned by requestorID.
func (s *PostService) Delete(ctx context.Context, id, requestorID jsonldb.ID) error {
	return s.table.Modify(ctx, func(posts []models.Post) ([]models.Post, error) {
		i, err := findOwned(posts, id, requestorID)
		if err != nil {
			return nil, err
		}
		return append(posts[:i], posts[i+1:]...), nil
	})
}

// findOwned locates post id and checks that requestorID is its author.
func findOwned(posts []models.Post, id, requestorID jsonldb.ID) (int, error) {
	for i := range posts {
		if posts[i].ID != id {
			continue
		}
		if posts[i].AuthorID != requestorID {
			return 0, fmt.Errorf("post %s: %w", id, ErrForbidden)
		}
		return i, nil
	}
	return 0, fmt.Errorf("post %s: %w", id, ErrNotFound)
}

func toView(p models.Post, names map[jsonldb.ID]string) models.PostView {
	name, ok := names[p.AuthorID]
	if !ok {
		name = models.UnknownAuthor
	}
	return models.PostView{Post: p, AuthorName: name}
}
