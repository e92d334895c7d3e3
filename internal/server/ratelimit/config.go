package ratelimit

import (
	"net/http"
	"time"
)

// Scope defines how rate limit keys are determined.
type Scope int

const (
	// ScopeIP uses client IP address as the rate limit key.
	ScopeIP Scope = iota
	// ScopeUser uses authenticated user ID as the rate limit key.
	ScopeUser
)

// Tier is a named limiter with its keying scope.
type Tier struct {
	Name    string
	Limiter *Limiter
	Scope   Scope
}

// Config holds the limiters for each tier. A nil tier is unlimited.
type Config struct {
	Auth  *Tier
	Write *Tier
}

// NewConfig creates the auth (per IP) and write (per user) tiers from
// requests per minute. 0 disables a tier.
func NewConfig(authPerMin, writePerMin int) *Config {
	c := &Config{}
	if authPerMin > 0 {
		c.Auth = &Tier{Name: "auth", Limiter: NewLimiter(authPerMin, time.Minute, authPerMin), Scope: ScopeIP}
	}
	if writePerMin > 0 {
		c.Write = &Tier{Name: "write", Limiter: NewLimiter(writePerMin, time.Minute, max(writePerMin/6, 1)), Scope: ScopeUser}
	}
	return c
}

// MatchUnauth returns the tier for an unauthenticated request, or nil.
func (c *Config) MatchUnauth(method, path string) *Tier {
	if method == http.MethodPost && (path == "/api/auth/login" || path == "/api/auth/register") {
		return c.Auth
	}
	return nil
}

// MatchAuth returns the tier for an authenticated request, or nil.
func (c *Config) MatchAuth(method, _ string) *Tier {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return c.Write
	default:
		return nil
	}
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	for _, t := range []*Tier{c.Auth, c.Write} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}
