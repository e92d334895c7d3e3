// Manages server configuration stored in server_config.json.

package storage

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maruel/postdb/internal/jsonldb"
)

const serverConfigName = "server_config.json"

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.json, created with defaults if missing.
type ServerConfig struct {
	// JWTSecret is the secret used to sign JWT tokens.
	// Auto-generated if empty on first load.
	JWTSecret []byte `json:"jwt_secret"`

	// StrictStore makes a corrupt collection file an error instead of an
	// empty collection.
	StrictStore bool `json:"strict_store"`

	// Quotas defines request size limits.
	Quotas Quotas `json:"quotas"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `json:"rate_limits"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// AuthRatePerMin limits authentication attempts (login, register).
	// 0 means unlimited.
	AuthRatePerMin int `json:"auth_rate_per_min"`

	// WriteRatePerMin limits write operations per user.
	// 0 means unlimited.
	WriteRatePerMin int `json:"write_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.AuthRatePerMin < 0 {
		return errors.New("auth_rate_per_min must be non-negative")
	}
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	return nil
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		AuthRatePerMin:  10,
		WriteRatePerMin: 60,
	}
}

// Quotas defines request size limits.
type Quotas struct {
	// MaxRequestBodyBytes limits the size of any JSON request body.
	MaxRequestBodyBytes int64 `json:"max_request_body_bytes"`

	// MaxUploadBytes limits the size of a single media upload.
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

// Validate checks that quota values are positive.
func (q *Quotas) Validate() error {
	if q.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be positive")
	}
	if q.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	return nil
}

// DefaultQuotas returns the default quotas.
func DefaultQuotas() Quotas {
	return Quotas{
		MaxRequestBodyBytes: 1024 * 1024,      // 1 MiB
		MaxUploadBytes:      20 * 1024 * 1024, // 20 MiB
	}
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("jwt_secret is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	if err := c.Quotas.Validate(); err != nil {
		return fmt.Errorf("quotas: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// LoadServerConfig loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist.
// Auto-generates JWTSecret if empty.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, serverConfigName)

	cfg := ServerConfig{Quotas: DefaultQuotas(), RateLimits: DefaultRateLimits()}

	modified := false
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", serverConfigName, err)
		}
		modified = true
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", serverConfigName, err)
	}

	if len(cfg.JWTSecret) == 0 {
		cfg.JWTSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.JWTSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		modified = true
	}

	if modified {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", serverConfigName, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/server_config.json atomically.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := jsonldb.WriteFileAtomic(filepath.Join(dataDir, serverConfigName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", serverConfigName, err)
	}
	return nil
}

// TableOptions returns the jsonldb options derived from the configuration.
func (c *ServerConfig) TableOptions() []jsonldb.Option {
	return []jsonldb.Option{jsonldb.WithStrict(c.StrictStore)}
}
