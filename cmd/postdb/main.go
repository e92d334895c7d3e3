// Package main is the entry point for the postdb server.
//
// postdb stores users and posts as JSONL files under a data directory and
// exposes them through a JSON HTTP API. Configuration is read from CLI flags,
// a .env file in the data directory, and server_config.json (JWT secret,
// quotas, rate limits).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/maruel/postdb/internal/media"
	"github.com/maruel/postdb/internal/server"
	"github.com/maruel/postdb/internal/server/handlers"
	"github.com/maruel/postdb/internal/server/ratelimit"
	"github.com/maruel/postdb/internal/storage"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "postdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Also write JSON logs to this file, rotated by size (optional)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}

	// Override with .env file values if not explicitly set via flags
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	overrideFromEnv(set, env, "http", "HTTP", httpAddr)
	overrideFromEnv(set, env, "log-level", "LOG_LEVEL", logLevel)
	overrideFromEnv(set, env, "log-file", "LOG_FILE", logFile)

	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(os.Stderr, level, *logFile)
	defer closeLog()
	slog.SetDefault(logger)

	serverCfg, err := storage.LoadServerConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load server_config.json: %w", err)
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	dbDir := filepath.Join(*dataDir, "db")
	opts := serverCfg.TableOptions()
	userService, err := storage.NewUserService(filepath.Join(dbDir, "users.jsonl"), opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize user service: %w", err)
	}
	postService, err := storage.NewPostService(filepath.Join(dbDir, "posts.jsonl"), userService, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize post service: %w", err)
	}
	mediaStore, err := media.New(filepath.Join(*dataDir, "media"))
	if err != nil {
		return fmt.Errorf("failed to initialize media store: %w", err)
	}

	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	limiters := ratelimit.NewConfig(serverCfg.RateLimits.AuthRatePerMin, serverCfg.RateLimits.WriteRatePerMin)
	defer limiters.Close()

	buildVersion, _, _, _ := getBuildInfo()
	svc := &handlers.Services{Users: userService, Posts: postService, Media: mediaStore}
	cfg := &handlers.Config{
		JWTSecret: serverCfg.JWTSecret,
		Version:   buildVersion,
		Quotas:    serverCfg.Quotas,
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc, cfg, limiters),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "data", *dataDir, "strict", serverCfg.StrictStore, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("postdb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
