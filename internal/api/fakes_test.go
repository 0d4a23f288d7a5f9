package api

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/config"
	"github.com/yegors/co-studio/internal/credential"
	"github.com/yegors/co-studio/internal/jobs"
	"github.com/yegors/co-studio/internal/live"
	"github.com/yegors/co-studio/internal/studio"
	"github.com/yegors/co-studio/internal/websocket"
	"github.com/yegors/co-studio/pkg/logger"
)

// fakeGemini answers every panel call with canned output
type fakeGemini struct {
	textErr error
	conn    *fakeLiveConn
}

func (f *fakeGemini) GenerateText(ctx context.Context, history []ai.ChatMessage, prompt string, media []ai.Media, config ai.TextConfig) (*ai.TextResult, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	return &ai.TextResult{Text: "**reply** to " + prompt}, nil
}

func (f *fakeGemini) GenerateImage(ctx context.Context, req ai.ImageRequest) (*ai.Media, error) {
	return &ai.Media{Data: []byte("jpeg"), MIMEType: "image/jpeg"}, nil
}

func (f *fakeGemini) EditImage(ctx context.Context, model, instruction string, source ai.Media) (*ai.Media, error) {
	return &ai.Media{Data: []byte("png"), MIMEType: "image/png"}, nil
}

func (f *fakeGemini) GenerateSpeech(ctx context.Context, req ai.SpeechRequest) ([]byte, error) {
	return []byte{0, 0, 1, 0}, nil
}

func (f *fakeGemini) CreateVideo(ctx context.Context, req ai.VideoRequest) (*ai.VideoOperation, error) {
	return &ai.VideoOperation{Name: "operations/1"}, nil
}

func (f *fakeGemini) CheckVideo(ctx context.Context, op *ai.VideoOperation) (*ai.VideoOperation, error) {
	return &ai.VideoOperation{Name: op.Name, Done: true, Video: &ai.VideoRef{URI: "files/v"}}, nil
}

func (f *fakeGemini) FetchArtifact(ctx context.Context, uri string) ([]byte, error) {
	return []byte("mp4"), nil
}

func (f *fakeGemini) Connect(ctx context.Context, config ai.LiveConfig) (ai.LiveConnection, error) {
	if f.conn == nil {
		return nil, errors.New("no live connection")
	}
	return f.conn, nil
}

type sentAudio struct {
	data     []byte
	mimeType string
}

type fakeLiveConn struct {
	msgs      chan *ai.LiveMessage
	sent      chan sentAudio
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeLiveConn() *fakeLiveConn {
	return &fakeLiveConn{
		msgs:   make(chan *ai.LiveMessage, 8),
		sent:   make(chan sentAudio, 8),
		closed: make(chan struct{}),
	}
}

func (c *fakeLiveConn) SendAudio(data []byte, mimeType string) error {
	select {
	case c.sent <- sentAudio{data: append([]byte(nil), data...), mimeType: mimeType}:
	default:
	}
	return nil
}

func (c *fakeLiveConn) Receive() (*ai.LiveMessage, error) {
	select {
	case msg := <-c.msgs:
		return msg, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeLiveConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// fakeCreds is an in-memory credential store
type fakeCreds struct {
	mu    sync.Mutex
	key   string
	files map[string]*credential.PickedFile
}

func (c *fakeCreds) HasCredential() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key != ""
}

func (c *fakeCreds) SetKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return credential.ErrNotConfigured
	}
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	return nil
}

func (c *fakeCreds) OpenCredentialPicker(ctx context.Context) error {
	if !c.HasCredential() {
		return credential.ErrNotConfigured
	}
	return nil
}

func (c *fakeCreds) PickFile(ctx context.Context, opts credential.PickOptions) (*credential.PickedFile, error) {
	f, ok := c.files[opts.Name]
	if !ok || !credential.Accepts(opts.Accept, f.MIMEType) {
		return nil, credential.ErrNoFile
	}
	return f, nil
}

type testEnv struct {
	gemini *fakeGemini
	creds  *fakeCreds
	studio *studio.Studio
	hub    *websocket.Server
	live   *LiveHandler
	server *httptest.Server
}

func newTestEnv(t *testing.T, key string) *testEnv {
	t.Helper()
	log := logger.NewNop()
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Server.StaticFilesDir = t.TempDir()
	cfg.Metrics.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	gemini := &fakeGemini{}
	creds := &fakeCreds{key: key, files: map[string]*credential.PickedFile{
		"cover.png": {Name: "cover.png", MIMEType: "image/png", Data: []byte("library")},
	}}

	poller := jobs.NewPoller(gemini, jobs.Options{Interval: time.Millisecond}, log)
	st := studio.New(gemini, jobs.NewTracker(poller), studio.Config{
		Models:       studio.Models{Fast: "fast", Pro: "pro", Speech: "tts", Image: "img", ImageEdit: "edit", Video: "veo"},
		MaxFrames:    8,
		ProjectTitle: "Demo",
		DefaultVoice: "Kore",
	}, log)

	hub := websocket.NewServer(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	controller := live.NewController(gemini, live.ControllerConfig{
		Model:      "live",
		CoachVoice: "Zephyr",
		Settings:   live.Settings{CaptureRate: 16000, PlaybackRate: 24000, BufferSize: 4096},
	}, log)

	handler := NewHandler(st, creds, hub, cfg, "test", log)
	liveHandler := NewLiveHandler(controller, st, creds, hub, log)
	router := NewRouter(handler, liveHandler, cfg, log)
	server := httptest.NewServer(router.Routes())

	t.Cleanup(func() {
		server.Close()
		controller.Shutdown(context.Background())
		st.Close()
		cancel()
	})
	return &testEnv{gemini: gemini, creds: creds, studio: st, hub: hub, live: liveHandler, server: server}
}
