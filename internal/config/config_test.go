package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/formsync-dev/formsync/pkg/submit"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 1<<20)
	}
	if cfg.Submit.Encoding != "json" {
		t.Errorf("Submit.Encoding = %q, want json", cfg.Submit.Encoding)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.SubmitTimeout() != 30*time.Second {
		t.Errorf("SubmitTimeout() = %v, want 30s", cfg.SubmitTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"submit": {"endpoint": "https://api.example.com/orders"}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Submit.Endpoint != "https://api.example.com/orders" {
		t.Errorf("Endpoint = %q", cfg.Submit.Endpoint)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want default :8080", cfg.Server.Addr)
	}
	if cfg.Submit.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want default 30", cfg.Submit.TimeoutSeconds)
	}
	if cfg.Path() == "" || cfg.Dir() != dir {
		t.Errorf("Path() = %q, Dir() = %q, want dir %q", cfg.Path(), cfg.Dir(), dir)
	}
}

func TestLoadS3Backend(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"store": {"backend": "s3", "s3": {"bucket": "forms"}}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Store.S3.Prefix != "forms/" {
		t.Errorf("S3.Prefix = %q, want default forms/", cfg.Store.S3.Prefix)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad json", `{`, "parse"},
		{"unknown backend", `{"store": {"backend": "etcd"}}`, "unknown store backend"},
		{"redis without addr", `{"store": {"backend": "redis"}}`, "redis.addr is required"},
		{"s3 without bucket", `{"store": {"backend": "s3"}}`, "s3.bucket is required"},
		{"unknown encoding", `{"submit": {"encoding": "protobuf"}}`, "encoding"},
		{"unknown log level", `{"log": {"level": "trace"}}`, "unknown log level"},
		{"negative timeout", `{"submit": {"timeoutSeconds": -1}}`, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadOrDefault(t.TempDir())
		if err != nil {
			t.Fatalf("LoadOrDefault() failed: %v", err)
		}
		if cfg.Server.Addr != ":8080" {
			t.Errorf("Addr = %q, want default", cfg.Server.Addr)
		}
	})

	t.Run("existing file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, `{"server": {"addr": ":9090"}}`)

		cfg, err := LoadOrDefault(dir)
		if err != nil {
			t.Fatalf("LoadOrDefault() failed: %v", err)
		}
		if cfg.Server.Addr != ":9090" {
			t.Errorf("Addr = %q, want :9090", cfg.Server.Addr)
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := New()
	cfg.Server.Addr = ":7070"
	cfg.Submit.Endpoint = "https://api.example.com/orders"

	path := filepath.Join(dir, ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() after save failed: %v", err)
	}
	if loaded.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, want :7070", loaded.Server.Addr)
	}
	if loaded.Submit.Endpoint != cfg.Submit.Endpoint {
		t.Errorf("Endpoint = %q, want %q", loaded.Submit.Endpoint, cfg.Submit.Endpoint)
	}
}

func TestEncoding(t *testing.T) {
	cfg := New()
	cfg.Submit.Encoding = "merge-patch"

	enc, err := cfg.Encoding()
	if err != nil {
		t.Fatalf("Encoding() failed: %v", err)
	}
	if enc != submit.EncodingMergePatch {
		t.Errorf("Encoding() = %v, want merge-patch", enc)
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := New()
		cfg.Log.Level = tt.level
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{}`)

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() failed: %v", err)
	}
	// Resolve both sides: the temp dir may sit behind a symlink.
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("FindProjectRoot() = %q, want %q", got, want)
	}
}

func TestFindProjectRootMissing(t *testing.T) {
	if _, err := FindProjectRoot(t.TempDir()); err == nil {
		t.Fatal("expected error when no config exists up the tree")
	}
}
