package credential

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/yegors/co-studio/pkg/logger"
)

// ErrNotConfigured is returned by features that need the access credential while none is set
var ErrNotConfigured = errors.New("API key is not configured")

// ErrNoFile is returned when PickFile finds nothing acceptable
var ErrNoFile = errors.New("no matching file")

// EnvKeys are checked in order when resolving the credential
var EnvKeys = []string{"GEMINI_API_KEY", "API_KEY"}

// KeySource supplies the current API key ("" when missing)
type KeySource interface {
	APIKey() string
}

// PickOptions narrows a file pick
type PickOptions struct {
	Name   string   // file name inside the library
	Accept []string // MIME patterns such as "image/*" or "video/mp4"
}

// PickedFile is a file chosen from the media library
type PickedFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Capabilities is the host integration surface the panels depend on
type Capabilities interface {
	HasCredential() bool
	OpenCredentialPicker(ctx context.Context) error
	PickFile(ctx context.Context, opts PickOptions) (*PickedFile, error)
}

// Keyring resolves the API key from config, the environment and a .env file,
// and serves files from the local media library.
type Keyring struct {
	mu         sync.RWMutex
	key        string
	envFile    string
	libraryDir string
	logger     *logger.Logger
}

// NewKeyring creates a keyring seeded with the configured key. Environment
// variables and the .env file win over the configured value.
func NewKeyring(configured, envFile, libraryDir string, logger *logger.Logger) *Keyring {
	k := &Keyring{
		key:        strings.TrimSpace(configured),
		envFile:    envFile,
		libraryDir: libraryDir,
		logger:     logger.Named("credential"),
	}
	if key := k.lookup(); key != "" {
		k.key = key
	}
	if k.key == "" {
		k.logger.Warn("API key not set; generation features stay disabled until one is provided")
	}
	return k
}

func (k *Keyring) lookup() string {
	if k.envFile != "" {
		if values, err := godotenv.Read(k.envFile); err == nil {
			for _, name := range EnvKeys {
				if v := strings.TrimSpace(values[name]); v != "" {
					return v
				}
			}
		} else if !os.IsNotExist(err) {
			k.logger.Warn("Failed to read env file", logger.String("path", k.envFile), logger.Error(err))
		}
	}
	for _, name := range EnvKeys {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// APIKey returns the current key
func (k *Keyring) APIKey() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key
}

// HasCredential reports whether a key is available
func (k *Keyring) HasCredential() bool {
	return k.APIKey() != ""
}

// SetKey stores a key supplied directly by the user
func (k *Keyring) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNotConfigured
	}
	k.mu.Lock()
	k.key = key
	k.mu.Unlock()
	k.logger.Info("API key updated")
	return nil
}

// OpenCredentialPicker re-reads the env file and environment and adopts any key found
func (k *Keyring) OpenCredentialPicker(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := k.lookup()
	if key == "" {
		return ErrNotConfigured
	}
	return k.SetKey(key)
}

// PickFile reads a named file from the media library, checking it against opts.Accept
func (k *Keyring) PickFile(ctx context.Context, opts PickOptions) (*PickedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k.libraryDir == "" {
		return nil, fmt.Errorf("%w: media library not configured", ErrNoFile)
	}

	name := filepath.Base(filepath.Clean("/" + opts.Name))
	if name == "/" || name == "." {
		return nil, fmt.Errorf("%w: empty name", ErrNoFile)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !Accepts(opts.Accept, mimeType) {
		return nil, fmt.Errorf("%w: %s is not one of %v", ErrNoFile, name, opts.Accept)
	}

	data, err := os.ReadFile(filepath.Join(k.libraryDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoFile, name)
		}
		return nil, err
	}
	return &PickedFile{Name: name, MIMEType: mimeType, Data: data}, nil
}

// Accepts matches a MIME type against accept patterns. An empty list accepts everything.
func Accepts(patterns []string, mimeType string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == mimeType || p == "*/*" {
			return true
		}
		if strings.HasSuffix(p, "/*") && strings.HasPrefix(mimeType, strings.TrimSuffix(p, "*")) {
			return true
		}
	}
	return false
}
