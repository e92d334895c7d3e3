package storage

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/maruel/postdb/internal/jsonldb"
	"github.com/maruel/postdb/internal/models"
	"golang.org/x/sync/errgroup"
)

func TestPostService(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()
		author, err := users.Register(ctx, "bob", "b@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		p, err := posts.Create(ctx, "Hello", "World", author.ID, "")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if p.ID.IsZero() || p.AuthorID != author.ID || p.CreatedAt.IsZero() {
			t.Errorf("Unexpected post: %+v", p)
		}
		if !p.ModifiedAt.IsZero() {
			t.Errorf("New post must not have ModifiedAt, got %v", p.ModifiedAt)
		}

		got, err := posts.Get(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "Hello" || got.Content != "World" {
			t.Errorf("Get returned %+v", got)
		}
	})

	t.Run("CreateUnknownAuthor", func(t *testing.T) {
		_, posts := newTestServices(t)
		_, err := posts.Create(t.Context(), "t", "c", jsonldb.NewID(), "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()
		a, err := users.Register(ctx, "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		b, err := users.Register(ctx, "bob", "b@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		p1, err := posts.Create(ctx, "first", "", a.ID, "")
		if err != nil {
			t.Fatal(err)
		}
		p2, err := posts.Create(ctx, "second", "", b.ID, "/media/abc-1")
		if err != nil {
			t.Fatal(err)
		}
		views, err := posts.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(views) != 2 {
			t.Fatalf("Expected 2 posts, got %d", len(views))
		}
		if views[0].ID != p1.ID || views[0].AuthorName != "alice" {
			t.Errorf("views[0] = %+v", views[0])
		}
		if views[1].ID != p2.ID || views[1].AuthorName != "bob" || views[1].MediaPath != "/media/abc-1" {
			t.Errorf("views[1] = %+v", views[1])
		}
	})

	t.Run("ListAbsentFile", func(t *testing.T) {
		_, posts := newTestServices(t)
		views, err := posts.List(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if views == nil || len(views) != 0 {
			t.Errorf("Expected an empty list, got %#v", views)
		}
	})

	t.Run("UnknownAuthorName", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()
		// A post whose author is not in the user collection.
		orphan := models.Post{ID: jsonldb.NewID(), Title: "orphan", AuthorID: jsonldb.NewID()}
		if err := posts.table.Append(ctx, orphan); err != nil {
			t.Fatal(err)
		}
		if _, err := users.Register(ctx, "alice", "a@x.com", "pw"); err != nil {
			t.Fatal(err)
		}
		views, err := posts.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(views) != 1 || views[0].AuthorName != models.UnknownAuthor {
			t.Errorf("Expected %q author, got %+v", models.UnknownAuthor, views)
		}
		v, err := posts.GetView(ctx, orphan.ID)
		if err != nil {
			t.Fatal(err)
		}
		if v.AuthorName != models.UnknownAuthor {
			t.Errorf("GetView author = %q", v.AuthorName)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, posts := newTestServices(t)
		if _, err := posts.Get(t.Context(), jsonldb.NewID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if _, err := posts.GetView(t.Context(), jsonldb.NewID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()
		a, err := users.Register(ctx, "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		p, err := posts.Create(ctx, "t", "c", a.ID, "/media/one-1")
		if err != nil {
			t.Fatal(err)
		}

		got, err := posts.Update(ctx, p.ID, a.ID, "t2", "c2", "")
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Title != "t2" || got.Content != "c2" {
			t.Errorf("Unexpected update result: %+v", got)
		}
		if got.MediaPath != "/media/one-1" {
			t.Errorf("Empty media path must keep the old one, got %q", got.MediaPath)
		}
		if got.ModifiedAt.IsZero() {
			t.Error("Expected ModifiedAt to be set")
		}
		if !got.CreatedAt.Equal(p.CreatedAt) || got.AuthorID != a.ID {
			t.Errorf("Update must not touch creation fields: %+v", got)
		}

		got, err = posts.Update(ctx, p.ID, a.ID, "t3", "c3", "/media/two-2")
		if err != nil {
			t.Fatal(err)
		}
		if got.MediaPath != "/media/two-2" {
			t.Errorf("MediaPath = %q", got.MediaPath)
		}
		stored, err := posts.Get(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Title != "t3" || stored.MediaPath != "/media/two-2" {
			t.Errorf("Update was not persisted: %+v", stored)
		}
	})

	t.Run("UpdateForbidden", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()
		a, err := users.Register(ctx, "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		b, err := users.Register(ctx, "bob", "b@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		p, err := posts.Create(ctx, "t", "c", b.ID, "")
		if err != nil {
			t.Fatal(err)
		}
		before, err := os.ReadFile(posts.table.Path())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := posts.Update(ctx, p.ID, a.ID, "hacked", "hacked", ""); !errors.Is(err, ErrForbidden) {
			t.Fatalf("Expected ErrForbidden, got %v", err)
		}
		after, err := os.ReadFile(posts.table.Path())
		if err != nil {
			t.Fatal(err)
		}
		if string(before) != string(after) {
			t.Errorf("Forbidden update modified the file:\n%s\n%s", before, after)
		}
		if _, err := posts.Update(ctx, jsonldb.NewID(), a.ID, "t", "c", ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()

		a, err := users.Register(ctx, "A", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := users.Register(ctx, "A again", "a@x.com", "pw"); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("Expected ErrDuplicateEmail, got %v", err)
		}
		b, err := users.Register(ctx, "B", "b@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		p1, err := posts.Create(ctx, "P1", "", b.ID, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := posts.Delete(ctx, p1.ID, a.ID); !errors.Is(err, ErrForbidden) {
			t.Fatalf("Expected ErrForbidden, got %v", err)
		}
		if _, err := posts.Get(ctx, p1.ID); err != nil {
			t.Fatalf("Post must survive a forbidden delete: %v", err)
		}
		if err := posts.Delete(ctx, p1.ID, b.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		views, err := posts.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range views {
			if v.ID == p1.ID {
				t.Errorf("Deleted post still listed: %+v", v)
			}
		}
		if err := posts.Delete(ctx, p1.ID, b.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Second delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		users, posts := newTestServices(t)
		a, err := users.Register(t.Context(), "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		const n = 32
		eg, ctx := errgroup.WithContext(t.Context())
		for i := range n {
			eg.Go(func() error {
				_, err := posts.Create(ctx, fmt.Sprintf("post %d", i), "", a.ID, "")
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			t.Fatal(err)
		}
		views, err := posts.List(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if len(views) != n {
			t.Errorf("Expected %d posts, got %d", n, len(views))
		}
	})

	t.Run("CorruptStrict", func(t *testing.T) {
		users, posts := newTestServices(t, jsonldb.WithStrict(true))
		ctx := t.Context()
		a, err := users.Register(ctx, "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(posts.table.Path(), []byte("[1,2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := posts.List(ctx); !errors.Is(err, ErrCorruptStore) {
			t.Errorf("List: expected ErrCorruptStore, got %v", err)
		}
		if _, err := posts.Create(ctx, "t", "c", a.ID, ""); !errors.Is(err, ErrCorruptStore) {
			t.Errorf("Create: expected ErrCorruptStore, got %v", err)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		users, posts := newTestServices(t)
		ctx := t.Context()
		a, err := users.Register(ctx, "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		// A directory in place of the file can be neither read nor replaced.
		if err := os.MkdirAll(posts.table.Path()+"/x", 0o755); err != nil {
			t.Fatal(err)
		}
		if _, err := posts.List(ctx); !errors.Is(err, ErrStoreUnavailable) {
			t.Errorf("List: expected ErrStoreUnavailable, got %v", err)
		}
		if _, err := posts.Create(ctx, "t", "c", a.ID, ""); !errors.Is(err, ErrStoreUnavailable) {
			t.Errorf("Create: expected ErrStoreUnavailable, got %v", err)
		}
	})
}
