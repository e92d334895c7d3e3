package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadDotEnv reads dataDir/.env. A missing file is an empty environment.
func loadDotEnv(dataDir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(dataDir, ".env"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return env, nil
}

// overrideFromEnv replaces *dst with env[key] unless flagName was set on the
// command line.
func overrideFromEnv(set map[string]bool, env map[string]string, flagName, key string, dst *string) {
	if set[flagName] {
		return
	}
	if v := env[key]; v != "" {
		*dst = v
	}
}
