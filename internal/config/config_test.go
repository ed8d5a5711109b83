package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Highlight.MaxPhotos != 25 || cfg.Highlight.MaxVideos != 10 {
		t.Errorf("unexpected caps: %d photos, %d videos", cfg.Highlight.MaxPhotos, cfg.Highlight.MaxVideos)
	}
	if cfg.Highlight.CrossfadeMaxClips != 15 {
		t.Errorf("expected crossfade threshold 15, got %d", cfg.Highlight.CrossfadeMaxClips)
	}
	if cfg.Vision.BatchSize != 20 {
		t.Errorf("expected batch size 20, got %d", cfg.Vision.BatchSize)
	}
	if cfg.FFmpeg.Timeouts.PhotoClip != 30*time.Second {
		t.Errorf("expected photo clip timeout 30s, got %v", cfg.FFmpeg.Timeouts.PhotoClip)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("UPLOADS_DIR", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
uploads_dir: /srv/uploads
highlight:
  max_photos: 5
  crossfade: 500ms
vision:
  model: gpt-4o-mini
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.UploadsDir != "/srv/uploads" {
		t.Errorf("expected uploads dir override, got %q", cfg.UploadsDir)
	}
	if cfg.Highlight.MaxPhotos != 5 {
		t.Errorf("expected 5 photos, got %d", cfg.Highlight.MaxPhotos)
	}
	if cfg.Highlight.MaxVideos != 10 {
		t.Errorf("untouched default changed: %d", cfg.Highlight.MaxVideos)
	}
	if cfg.Highlight.Crossfade != 500*time.Millisecond {
		t.Errorf("expected 500ms crossfade, got %v", cfg.Highlight.Crossfade)
	}
	if cfg.Vision.Model != "gpt-4o-mini" {
		t.Errorf("expected model override, got %q", cfg.Vision.Model)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://localhost/tickets")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Vision.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.Vision.APIKey)
	}
	if cfg.Database.URL != "postgres://localhost/tickets" {
		t.Errorf("expected database url from env, got %q", cfg.Database.URL)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("highlight: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Highlight.MaxVideos = 3

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Highlight.MaxVideos != 3 {
		t.Errorf("expected 3 videos after reload, got %d", loaded.Highlight.MaxVideos)
	}
}

func TestContextCarriesConfig(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 7

	ctx := WithConfig(context.Background(), cfg)
	if got := FromContext(ctx); got.Concurrency != 7 {
		t.Errorf("expected config from context, got concurrency %d", got.Concurrency)
	}
	if got := FromContext(context.Background()); got.Concurrency != Default().Concurrency {
		t.Errorf("expected defaults without config in context")
	}
}
