package storage

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/maruel/postdb/internal/jsonldb"
)

// newTestServices returns user and post services rooted in a fresh temporary
// data directory.
func newTestServices(t *testing.T, opts ...jsonldb.Option) (*UserService, *PostService) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	opts = append([]jsonldb.Option{jsonldb.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	users, err := NewUserService(filepath.Join(dir, "users.jsonl"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	posts, err := NewPostService(filepath.Join(dir, "posts.jsonl"), users, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return users, posts
}
