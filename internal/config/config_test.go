package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
backend:
  base_url: "http://analysis:8000/"
  timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Backend.BaseURL != "http://analysis:8000" {
		t.Errorf("base_url should lose its trailing slash, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("backend timeout: got %v", cfg.Backend.Timeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if len(cfg.Inbox.Directories) != 0 {
		t.Errorf("inbox directories should default to empty, got %v", cfg.Inbox.Directories)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
inbox:
  directories: ["./inbox"]
  output_dir: "./out/reports"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "out", "reports"); cfg.Inbox.OutputDir != want {
		t.Errorf("output_dir = %s, want %s", cfg.Inbox.OutputDir, want)
	}
	if len(cfg.Inbox.Directories) != 1 {
		t.Fatalf("inbox directories: got %d", len(cfg.Inbox.Directories))
	}
	if want := filepath.Join(dir, "inbox"); cfg.Inbox.Directories[0] != want {
		t.Errorf("inbox directory = %s, want %s", cfg.Inbox.Directories[0], want)
	}
	if !cfg.Inbox.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_palette(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
render:
  palette:
    - {base: "#000000", light: "#eeeeee", border: "#cccccc", text: "#111111"}
    - {base: "#ffffff", light: "#fafafa", border: "#dddddd", text: "#222222"}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Render.Palette) != 2 || cfg.Render.Palette[1].Text != "#222222" {
		t.Errorf("palette = %+v", cfg.Render.Palette)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("default backend: got %s", cfg.Backend.BaseURL)
	}
	if cfg.Render.CacheSize != 256 || cfg.Render.PreviewChars != 200 {
		t.Errorf("render defaults: got %+v", cfg.Render)
	}
	if len(cfg.Inbox.Extensions) != 1 || cfg.Inbox.Extensions[0] != ".json" {
		t.Errorf("inbox extensions: got %v", cfg.Inbox.Extensions)
	}
	if cfg.Inbox.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
}

func TestApplyDefaults_RecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Inbox: InboxConfig{Directories: []string{"/tmp/inbox"}}}
	ApplyDefaults(cfg)
	if cfg.Inbox.Recursive == nil || !*cfg.Inbox.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestInboxConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		i := &InboxConfig{}
		if got := i.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		i := &InboxConfig{Recursive: &f}
		if got := i.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Inbox:  InboxConfig{Directories: []string{"/tmp/inbox"}, OutputDir: "/tmp/out"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if len(loaded.Inbox.Directories) != 1 || loaded.Inbox.Directories[0] != "/tmp/inbox" {
		t.Errorf("loaded inbox: got %v", loaded.Inbox.Directories)
	}
}
