package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/postdb/internal/jsonldb"
	"github.com/maruel/postdb/internal/models"
	"github.com/maruel/postdb/internal/storage"
)

var (
	errUnauthorized       = errors.New("unauthorized")
	errInvalidAuthHdr     = errors.New("invalid authorization header")
	errInvalidToken       = errors.New("invalid token")
	errInvalidUserIDToken = errors.New("invalid user ID in token")
	errUserNotFound       = errors.New("user not found")
)

// validateJWT extracts the bearer token from r and resolves the user it names.
func validateJWT(ctx context.Context, r *http.Request, users *storage.UserService, jwtSecret []byte) (*models.User, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errUnauthorized
	}
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return nil, errInvalidAuthHdr
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	userID, err := jsonldb.ParseID(claims.Subject)
	if err != nil || userID.IsZero() {
		return nil, errInvalidUserIDToken
	}
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return user, nil
}
