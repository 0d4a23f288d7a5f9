package studio

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/jobs"
	"github.com/yegors/co-studio/pkg/logger"
)

type textCall struct {
	history []ai.ChatMessage
	prompt  string
	media   []ai.Media
	config  ai.TextConfig
}

type fakeProvider struct {
	mu sync.Mutex

	textFn  func(call textCall) (*ai.TextResult, error)
	image   *ai.Media
	edited  *ai.Media
	imgErr  error
	speech  []byte
	voiceFn func(req ai.SpeechRequest) ([]byte, error)

	textCalls   []textCall
	imageReqs   []ai.ImageRequest
	editSources []ai.Media
	speechReqs  []ai.SpeechRequest
}

func (f *fakeProvider) GenerateText(ctx context.Context, history []ai.ChatMessage, prompt string, media []ai.Media, config ai.TextConfig) (*ai.TextResult, error) {
	call := textCall{history: history, prompt: prompt, media: media, config: config}
	f.mu.Lock()
	f.textCalls = append(f.textCalls, call)
	fn := f.textFn
	f.mu.Unlock()
	if fn == nil {
		return &ai.TextResult{Text: "ok"}, nil
	}
	return fn(call)
}

func (f *fakeProvider) GenerateImage(ctx context.Context, req ai.ImageRequest) (*ai.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageReqs = append(f.imageReqs, req)
	return f.image, f.imgErr
}

func (f *fakeProvider) EditImage(ctx context.Context, model, instruction string, source ai.Media) (*ai.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editSources = append(f.editSources, source)
	return f.edited, f.imgErr
}

func (f *fakeProvider) GenerateSpeech(ctx context.Context, req ai.SpeechRequest) ([]byte, error) {
	f.mu.Lock()
	f.speechReqs = append(f.speechReqs, req)
	fn := f.voiceFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return f.speech, nil
}

func (f *fakeProvider) calls() []textCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]textCall(nil), f.textCalls...)
}

var testConfig = Config{
	Models: Models{
		Fast:      "fast",
		Pro:       "pro",
		Speech:    "tts",
		Image:     "imagen",
		ImageEdit: "image-edit",
		Video:     "veo-fast",
	},
	ThinkingBudget: 32768,
	Resolution:     "720p",
	MaxFrames:      8,
	ProjectTitle:   "My AI Project",
	DefaultVoice:   "Kore",
}

// fakeVideos drives jobs through a scripted operation sequence
type fakeVideos struct {
	mu        sync.Mutex
	createErr error
	pending   int
	uri       string
	data      []byte
	requests  []ai.VideoRequest
	checks    int
	gate      chan struct{}
}

func (f *fakeVideos) CreateVideo(ctx context.Context, req ai.VideoRequest) (*ai.VideoOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ai.VideoOperation{Name: "operations/v"}, nil
}

func (f *fakeVideos) CheckVideo(ctx context.Context, op *ai.VideoOperation) (*ai.VideoOperation, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checks <= f.pending {
		return &ai.VideoOperation{Name: op.Name}, nil
	}
	return &ai.VideoOperation{Name: op.Name, Done: true, Video: &ai.VideoRef{URI: f.uri, AspectRatio: "16:9"}}, nil
}

func (f *fakeVideos) FetchArtifact(ctx context.Context, uri string) ([]byte, error) {
	return f.data, nil
}

func newTestStudio(p *fakeProvider, videos *fakeVideos) *Studio {
	if videos == nil {
		videos = &fakeVideos{}
	}
	poller := jobs.NewPoller(videos, jobs.Options{
		Interval:    time.Millisecond,
		ExtendModel: "veo-extend",
		Resolution:  "720p",
	}, logger.NewNop())
	return New(p, jobs.NewTracker(poller), testConfig, logger.NewNop())
}
