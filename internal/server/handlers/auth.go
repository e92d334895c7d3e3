package handlers

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/postdb/internal/errors"
	"github.com/maruel/postdb/internal/models"
	"github.com/maruel/postdb/internal/storage"
)

const tokenExpiration = 24 * time.Hour

// AuthHandler handles authentication requests.
type AuthHandler struct {
	users     *storage.UserService
	jwtSecret []byte
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users *storage.UserService, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret}
}

// Register creates an account and logs it in.
func (h *AuthHandler) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	user, err := h.users.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, toAPIError(err, "user")
	}
	return h.authResponse(user)
}

// Login handles user login and returns a JWT token.
func (h *AuthHandler) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toAPIError(err, "user")
	}
	return h.authResponse(user)
}

// Logout acknowledges a logout. Tokens are not tracked server side; the client
// discards its token.
func (h *AuthHandler) Logout(ctx context.Context, _ *models.User, _ *LogoutRequest) (*OKResponse, error) {
	return &OKResponse{OK: true}, nil
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(ctx context.Context, user *models.User, _ *MeRequest) (*models.User, error) {
	return user, nil
}

// GenerateToken generates a JWT token identifying user.
func (h *AuthHandler) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": now.Add(tokenExpiration).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}

func (h *AuthHandler) authResponse(user *models.User) (*AuthResponse, error) {
	token, err := h.GenerateToken(user)
	if err != nil {
		return nil, errors.InternalWithError("Failed to generate token", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}
