// Package storage provides the user and post repositories on top of jsonldb.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/postdb/internal/jsonldb"
	"github.com/maruel/postdb/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown, so that a failed
// login costs the same whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("postdb-dummy-password"), bcrypt.DefaultCost)

// UserService handles user registration and authentication.
type UserService struct {
	table *jsonldb.Table[userStorage]
}

// NewUserService creates a new user service backed by the JSONL file at path.
func NewUserService(path string, opts ...jsonldb.Option) (*UserService, error) {
	table, err := jsonldb.NewTable[userStorage](path, opts...)
	if err != nil {
		return nil, err
	}
	return &UserService{table: table}, nil
}

type userStorage struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

// Register creates a new user.
//
// Emails are compared case-sensitively. Returns ErrDuplicateEmail if the email
// is already registered.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	// Hash outside the exclusion scope; bcrypt is deliberately slow.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password exceeds 72 bytes", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	stored := userStorage{
		User: models.User{
			ID:       jsonldb.NewID(),
			Username: username,
			Email:    email,
			Created:  time.Now().UTC(),
		},
		PasswordHash: string(hash),
	}
	err = s.table.Modify(ctx, func(rows []userStorage) ([]userStorage, error) {
		for _, u := range rows {
			if u.Email == email {
				return nil, ErrDuplicateEmail
			}
		}
		return append(rows, stored), nil
	})
	if err != nil {
		return nil, err
	}
	user := stored.User
	return &user, nil
}

// Authenticate verifies user credentials.
//
// The same ErrInvalidCredentials is returned for an unknown email and for a
// wrong password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	rows, err := s.table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, stored := range rows {
		if stored.Email == email {
			if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)); err != nil {
				return nil, ErrInvalidCredentials
			}
			user := stored.User
			return &user, nil
		}
	}
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return nil, ErrInvalidCredentials
}

// FindByID retrieves a user by ID.
func (s *UserService) FindByID(ctx context.Context, id jsonldb.ID) (*models.User, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	rows, err := s.table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, stored := range rows {
		if stored.ID == id {
			user := stored.User
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
}

// Names returns every user's display name keyed by ID, from a single load.
func (s *UserService) Names(ctx context.Context) (map[jsonldb.ID]string, error) {
	rows, err := s.table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := jsonldb.IndexBy(rows, func(u userStorage) jsonldb.ID { return u.ID })
	names := make(map[jsonldb.ID]string, len(byID))
	for id, u := range byID {
		names[id] = u.Username
	}
	return names, nil
}
