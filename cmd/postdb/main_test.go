package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		env, err := loadDotEnv(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if len(env) != 0 {
			t.Errorf("got %v", env)
		}
	})
	t.Run("Override", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP=:9000\nLOG_LEVEL=debug\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		env, err := loadDotEnv(dir)
		if err != nil {
			t.Fatal(err)
		}
		addr := "localhost:8080"
		level := "warn"
		logFile := "x.log"
		set := map[string]bool{"log-level": true}
		overrideFromEnv(set, env, "http", "HTTP", &addr)
		overrideFromEnv(set, env, "log-level", "LOG_LEVEL", &level)
		overrideFromEnv(set, env, "log-file", "LOG_FILE", &logFile)
		if addr != ":9000" {
			t.Errorf("addr = %q", addr)
		}
		if level != "warn" {
			t.Errorf("explicit flag overridden: %q", level)
		}
		if logFile != "x.log" {
			t.Errorf("logFile = %q", logFile)
		}
	})
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if _, err := parseLevel(s); err != nil {
			t.Errorf("%s: %v", s, err)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("expected error")
	}
}

type recordHandler struct {
	level slog.Level
	buf   *bytes.Buffer
}

func (h recordHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.buf.WriteString(r.Message)
	h.buf.WriteByte('\n')
	return nil
}

func (h recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h recordHandler) WithGroup(string) slog.Handler { return h }

func TestTeeHandler(t *testing.T) {
	var all, errs bytes.Buffer
	l := slog.New(teeHandler{
		recordHandler{slog.LevelDebug, &all},
		recordHandler{slog.LevelError, &errs},
	})
	l.Debug("one")
	l.With("k", "v").Error("two")
	if got := all.String(); got != "one\ntwo\n" {
		t.Errorf("all = %q", got)
	}
	if got := errs.String(); got != "two\n" {
		t.Errorf("errs = %q", got)
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postdb.log")
	l, closeLog := newLogger(os.Stderr, slog.LevelInfo, path)
	l.Info("hello", "n", 1)
	closeLog()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("got %q", data)
	}
}
