package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/maruel/postdb/internal/jsonldb"
	"golang.org/x/sync/errgroup"
)

func TestUserService(t *testing.T) {
	t.Run("Register", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()

		user, err := users.Register(ctx, "alice", "a@x.com", "hunter22")
		if err != nil {
			t.Fatalf("Failed to register user: %v", err)
		}
		if user.ID.IsZero() {
			t.Error("Expected a non-zero user ID")
		}
		if user.Username != "alice" || user.Email != "a@x.com" {
			t.Errorf("Unexpected user: %+v", user)
		}
		if user.Created.IsZero() {
			t.Error("Expected Created to be set")
		}

		got, err := users.FindByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.ID != user.ID || got.Username != "alice" {
			t.Errorf("FindByID returned %+v, want %+v", got, user)
		}
	})

	t.Run("PasswordNotStoredInPlainText", func(t *testing.T) {
		users, _ := newTestServices(t)
		if _, err := users.Register(t.Context(), "alice", "a@x.com", "hunter22"); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(users.table.Path())
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "hunter22") {
			t.Errorf("Plain text password found in %s", data)
		}
		if !strings.Contains(string(data), `"password_hash":"$2`) {
			t.Errorf("Expected a bcrypt hash in %s", data)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()
		if _, err := users.Register(ctx, "alice", "a@x.com", "pw1"); err != nil {
			t.Fatal(err)
		}
		_, err := users.Register(ctx, "other", "a@x.com", "pw2")
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("Expected ErrDuplicateEmail, got %v", err)
		}
		rows, err := users.table.LoadAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 {
			t.Errorf("Expected 1 stored user, got %d", len(rows))
		}
		// Emails are compared as is.
		if _, err := users.Register(ctx, "alice2", "A@x.com", "pw3"); err != nil {
			t.Errorf("Expected differently cased email to register, got %v", err)
		}
	})

	t.Run("ConcurrentDuplicateEmail", func(t *testing.T) {
		users, _ := newTestServices(t)
		const n = 8
		var ok, dup atomic.Int32
		eg, ctx := errgroup.WithContext(t.Context())
		for i := range n {
			eg.Go(func() error {
				_, err := users.Register(ctx, fmt.Sprintf("user%d", i), "same@x.com", "pw")
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, ErrDuplicateEmail):
					dup.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			t.Fatal(err)
		}
		if ok.Load() != 1 || dup.Load() != n-1 {
			t.Errorf("Expected 1 success and %d duplicates, got %d and %d", n-1, ok.Load(), dup.Load())
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		users, _ := newTestServices(t)
		tests := []struct {
			name                      string
			username, email, password string
		}{
			{"no username", "", "a@x.com", "pw"},
			{"no email", "alice", "", "pw"},
			{"no password", "alice", "a@x.com", ""},
			{"password too long", "alice", "a@x.com", strings.Repeat("p", 73)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := users.Register(t.Context(), tt.username, tt.email, tt.password)
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("Expected ErrInvalidInput, got %v", err)
				}
			})
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()
		user, err := users.Register(ctx, "alice", "a@x.com", "hunter22")
		if err != nil {
			t.Fatal(err)
		}

		got, err := users.Authenticate(ctx, "a@x.com", "hunter22")
		if err != nil {
			t.Fatalf("Authentication failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("Expected user ID %s, got %s", user.ID, got.ID)
		}

		_, errWrongPassword := users.Authenticate(ctx, "a@x.com", "wrong")
		_, errUnknownEmail := users.Authenticate(ctx, "nobody@x.com", "hunter22")
		if !errors.Is(errWrongPassword, ErrInvalidCredentials) {
			t.Errorf("Wrong password: expected ErrInvalidCredentials, got %v", errWrongPassword)
		}
		if !errors.Is(errUnknownEmail, ErrInvalidCredentials) {
			t.Errorf("Unknown email: expected ErrInvalidCredentials, got %v", errUnknownEmail)
		}
		if errWrongPassword.Error() != errUnknownEmail.Error() {
			t.Errorf("Failures must be indistinguishable: %q vs %q", errWrongPassword, errUnknownEmail)
		}
	})

	t.Run("FindByID", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()
		if _, err := users.FindByID(ctx, jsonldb.ID{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Zero ID: expected ErrNotFound, got %v", err)
		}
		if _, err := users.FindByID(ctx, jsonldb.NewID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Unknown ID: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Names", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()
		a, err := users.Register(ctx, "alice", "a@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		b, err := users.Register(ctx, "bob", "b@x.com", "pw")
		if err != nil {
			t.Fatal(err)
		}
		names, err := users.Names(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 2 || names[a.ID] != "alice" || names[b.ID] != "bob" {
			t.Errorf("Unexpected names: %v", names)
		}
	})

	t.Run("AbsentFile", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()
		names, err := users.Names(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 0 {
			t.Errorf("Expected no users, got %v", names)
		}
		if _, err := os.Stat(users.table.Path()); !os.IsNotExist(err) {
			t.Errorf("Reading must not create the file, got %v", err)
		}
	})

	t.Run("CorruptStrict", func(t *testing.T) {
		users, _ := newTestServices(t, jsonldb.WithStrict(true))
		ctx := t.Context()
		if err := os.WriteFile(users.table.Path(), []byte("{not json\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := users.Register(ctx, "alice", "a@x.com", "pw"); !errors.Is(err, ErrCorruptStore) {
			t.Errorf("Register: expected ErrCorruptStore, got %v", err)
		}
		if _, err := users.Authenticate(ctx, "a@x.com", "pw"); !errors.Is(err, ErrCorruptStore) {
			t.Errorf("Authenticate: expected ErrCorruptStore, got %v", err)
		}
		data, err := os.ReadFile(users.table.Path())
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "{not json\n" {
			t.Errorf("Corrupt file was modified: %q", data)
		}
	})

	t.Run("CorruptLenient", func(t *testing.T) {
		users, _ := newTestServices(t)
		ctx := t.Context()
		if err := os.WriteFile(users.table.Path(), []byte("{not json\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := users.Authenticate(ctx, "a@x.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := users.Register(ctx, "alice", "a@x.com", "pw"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		matches, err := filepath.Glob(users.table.Path() + ".corrupt-*")
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 1 {
			t.Errorf("Expected the corrupt file to be kept aside, got %v", matches)
		}
	})
}
