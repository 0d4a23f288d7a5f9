package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yegors/co-studio/pkg/logger"
)

func TestKeyringResolution(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")

	t.Run("configured value", func(t *testing.T) {
		k := NewKeyring("from-config", envFile, "", logger.NewNop())
		if k.APIKey() != "from-config" || !k.HasCredential() {
			t.Fatalf("unexpected key %q", k.APIKey())
		}
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("API_KEY", "from-env")
		k := NewKeyring("from-config", envFile, "", logger.NewNop())
		if k.APIKey() != "from-env" {
			t.Fatalf("unexpected key %q", k.APIKey())
		}
	})

	t.Run("missing key degrades", func(t *testing.T) {
		k := NewKeyring("", envFile, "", logger.NewNop())
		if k.HasCredential() {
			t.Fatal("expected no credential")
		}
		if err := k.OpenCredentialPicker(context.Background()); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("picker adopts env file", func(t *testing.T) {
		k := NewKeyring("", envFile, "", logger.NewNop())
		if err := os.WriteFile(envFile, []byte("GEMINI_API_KEY=from-file\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(envFile)
		if err := k.OpenCredentialPicker(context.Background()); err != nil {
			t.Fatalf("OpenCredentialPicker returned error: %v", err)
		}
		if k.APIKey() != "from-file" {
			t.Fatalf("unexpected key %q", k.APIKey())
		}
	})
}

func TestPickFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cover.png"), []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	k := NewKeyring("k", "", dir, logger.NewNop())
	ctx := context.Background()

	f, err := k.PickFile(ctx, PickOptions{Name: "cover.png", Accept: []string{"image/*"}})
	if err != nil {
		t.Fatalf("PickFile returned error: %v", err)
	}
	if f.MIMEType != "image/png" || string(f.Data) != "png" {
		t.Fatalf("unexpected file %+v", f)
	}

	if _, err := k.PickFile(ctx, PickOptions{Name: "cover.png", Accept: []string{"video/*"}}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile for rejected type, got %v", err)
	}
	if _, err := k.PickFile(ctx, PickOptions{Name: "../../etc/passwd.png"}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile for path outside library, got %v", err)
	}
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		patterns []string
		mime     string
		want     bool
	}{
		{nil, "video/mp4", true},
		{[]string{"image/*"}, "image/jpeg", true},
		{[]string{"image/*"}, "video/mp4", false},
		{[]string{"video/mp4", "image/png"}, "image/png", true},
		{[]string{"*/*"}, "audio/wav", true},
	}
	for _, tt := range tests {
		if got := Accepts(tt.patterns, tt.mime); got != tt.want {
			t.Errorf("Accepts(%v, %q) = %v, want %v", tt.patterns, tt.mime, got, tt.want)
		}
	}
}
