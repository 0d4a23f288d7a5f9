package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidateDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[server]
port = 8080

[gemini]
api_key = "abc"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"api key", cfg.Gemini.APIKey, "abc"},
		{"log level", cfg.Logging.Level, "info"},
		{"log format", cfg.Logging.Format, "console"},
		{"live transport", cfg.Gemini.LiveTransport, "sdk"},
		{"env file", cfg.Gemini.EnvFile, ".env"},
		{"pro model", cfg.Gemini.ProModel, "gemini-2.5-pro"},
		{"video model", cfg.Gemini.VideoModel, "veo-3.1-fast-generate-preview"},
		{"extend model", cfg.Gemini.ExtendModel, "veo-3.1-generate-preview"},
		{"thinking budget", cfg.Gemini.ThinkingBudget, 32768},
		{"poll interval", cfg.Video.PollIntervalSecs, 10},
		{"max polls", cfg.Video.MaxPolls, 90},
		{"resolution", cfg.Video.Resolution, "720p"},
		{"capture rate", cfg.Live.CaptureSampleRate, 16000},
		{"playback rate", cfg.Live.PlaybackSampleRate, 24000},
		{"buffer size", cfg.Live.BufferSize, 4096},
		{"coach voice", cfg.Live.CoachVoice, "Zephyr"},
		{"project title", cfg.Studio.ProjectTitle, "My AI Project"},
		{"default voice", cfg.Studio.DefaultVoice, "Kore"},
		{"metrics path", cfg.Metrics.Path, "/metrics"},
		{"static dir", cfg.Server.StaticFilesDir, "www"},
		{"upload limit", cfg.Server.MaxUploadMB, 20},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"duplicate port", func(c *Config) { c.Server.AdditionalPorts = []int{8080} }, "duplicate port"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
		{"transport", func(c *Config) { c.Gemini.LiveTransport = "grpc" }, "invalid live_transport"},
		{"max polls", func(c *Config) { c.Video.MaxPolls = -5 }, "invalid max_polls"},
		{"poll interval", func(c *Config) { c.Video.PollIntervalSecs = -1 }, "invalid poll_interval_seconds"},
		{"buffer size", func(c *Config) { c.Live.BufferSize = -1 }, "must be positive"},
		{"thinking budget", func(c *Config) { c.Gemini.ThinkingBudget = -1 }, "invalid thinking_budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{Port: 8080}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUnlimitedPolls(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8080}, Video: VideoConfig{MaxPolls: -1}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Video.MaxPolls != -1 {
		t.Fatalf("MaxPolls = %d, want -1", cfg.Video.MaxPolls)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfig(t, dir, "[server\nport = ")
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "failed to decode") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, filepath.Join(dir, "configs"), "[server]\nport = 9090\n")
	t.Chdir(dir)

	cfg, err := LoadWithFallback("does-not-exist.toml")
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}

	if err := os.Remove(filepath.Join(dir, "configs", "config.toml")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWithFallback(""); err == nil {
		t.Fatal("expected error when no config exists")
	}
}
