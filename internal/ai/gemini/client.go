package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/credential"
	"github.com/yegors/co-studio/internal/metrics"
	"github.com/yegors/co-studio/pkg/logger"
	"google.golang.org/genai"
)

const (
	// DefaultHost is the default host for Gemini API
	DefaultHost = "generativelanguage.googleapis.com"
	// DefaultPath is the WebSocket path for BidiGenerateContent
	DefaultPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Live transports
const (
	TransportSDK = "sdk"
	TransportRaw = "raw"
)

// Options configures a Client
type Options struct {
	BaseURL       string // optional API base URL override (proxies)
	LiveTransport string // "sdk" (default) or "raw"
}

// Client implements the ai provider interfaces on top of the Gemini API.
// The underlying SDK client is rebuilt whenever the credential changes.
type Client struct {
	keys       credential.KeySource
	opts       Options
	logger     *logger.Logger
	dialer     *websocket.Dialer
	httpClient *http.Client

	mu     sync.Mutex
	sdk    *genai.Client
	sdkKey string
}

// NewClient creates a new Gemini Client
func NewClient(keys credential.KeySource, opts Options, logger *logger.Logger) *Client {
	if opts.LiveTransport == "" {
		opts.LiveTransport = TransportSDK
	}
	return &Client{
		keys:   keys,
		opts:   opts,
		logger: logger.Named("gemini"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, credential.ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sdk != nil && c.sdkKey == key {
		return c.sdk, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if c.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.opts.BaseURL}
	}
	sdk, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.sdk = sdk
	c.sdkKey = key
	c.logger.Debug("Created genai client")
	return sdk, nil
}

// -- TextProvider Implementation --

func (c *Client) GenerateText(ctx context.Context, history []ai.ChatMessage, prompt string, media []ai.Media, config ai.TextConfig) (result *ai.TextResult, err error) {
	defer metrics.ObserveAICall("text", config.Model, time.Now(), &err)

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	contents := toContents(history)
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, m := range media {
		parts = append(parts, genai.NewPartFromBytes(m.Data, m.MIMEType))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	gcfg := &genai.GenerateContentConfig{
		Temperature: config.Temperature,
		TopP:        config.TopP,
	}
	if config.SystemInstruction != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(config.SystemInstruction, genai.RoleUser)
	}
	if config.ThinkingBudget > 0 {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(config.ThinkingBudget))}
	}
	if config.UseSearch {
		gcfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := sdk.Models.GenerateContent(ctx, config.Model, contents, gcfg)
	if err != nil {
		return nil, fmt.Errorf("gemini text generation failed: %w", err)
	}

	return &ai.TextResult{
		Text:    resp.Text(),
		Sources: groundingSources(resp),
	}, nil
}

func toContents(history []ai.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if m.Role == ai.RoleModel || m.Role == "assistant" {
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		} else {
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return out
}

func groundingSources(resp *genai.GenerateContentResponse) []ai.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []ai.Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, ai.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}

// -- ImageProvider Implementation --

func (c *Client) GenerateImage(ctx context.Context, req ai.ImageRequest) (image *ai.Media, err error) {
	defer metrics.ObserveAICall("image", req.Model, time.Now(), &err)

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	resp, err := sdk.Models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: mimeType,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image generation failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, nil
	}

	img := resp.GeneratedImages[0].Image
	if img.MIMEType != "" {
		mimeType = img.MIMEType
	}
	c.logger.Debug("Generated image", logger.String("size", humanize.Bytes(uint64(len(img.ImageBytes)))))
	return &ai.Media{Data: img.ImageBytes, MIMEType: mimeType}, nil
}

func (c *Client) EditImage(ctx context.Context, model, instruction string, source ai.Media) (image *ai.Media, err error) {
	defer metrics.ObserveAICall("image_edit", model, time.Now(), &err)

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(source.Data, source.MIMEType),
		genai.NewPartFromText(instruction),
	}, genai.RoleUser)}

	resp, err := sdk.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image edit failed: %w", err)
	}

	if blob := firstInlineData(resp); blob != nil {
		return &ai.Media{Data: blob.Data, MIMEType: blob.MIMEType}, nil
	}
	return nil, nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

// -- SpeechProvider Implementation --

func (c *Client) GenerateSpeech(ctx context.Context, req ai.SpeechRequest) (pcm []byte, err error) {
	defer metrics.ObserveAICall("speech", req.Model, time.Now(), &err)

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := sdk.Models.GenerateContent(ctx, req.Model, genai.Text(req.Text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig:       speechConfig(req.Voice),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini speech generation failed: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil {
		return nil, nil
	}
	return blob.Data, nil
}

func speechConfig(voice string) *genai.SpeechConfig {
	if voice == "" {
		return nil
	}
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
		},
	}
}

// -- VideoProvider Implementation --

func (c *Client) CreateVideo(ctx context.Context, req ai.VideoRequest) (op *ai.VideoOperation, err error) {
	defer metrics.ObserveAICall("video_create", req.Model, time.Now(), &err)

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	source := &genai.GenerateVideosSource{Prompt: req.Prompt}
	if req.Image != nil {
		source.Image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MIMEType}
	}
	aspectRatio := req.AspectRatio
	if req.Source != nil {
		source.Video = &genai.Video{URI: req.Source.URI, MIMEType: req.Source.MIMEType}
		if aspectRatio == "" {
			aspectRatio = req.Source.AspectRatio
		}
	}

	gop, err := sdk.Models.GenerateVideosFromSource(ctx, req.Model, source, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     req.Resolution,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini video generation failed: %w", err)
	}

	c.logger.Info("Video operation created",
		logger.String("operation", gop.Name),
		logger.String("model", req.Model),
		logger.Bool("extension", req.Source != nil))
	return convertOperation(gop, aspectRatio), nil
}

func (c *Client) CheckVideo(ctx context.Context, op *ai.VideoOperation) (*ai.VideoOperation, error) {
	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	state, ok := op.State.(*videoState)
	if !ok || state.op == nil {
		return nil, fmt.Errorf("video operation %q carries no provider state", op.Name)
	}

	gop, err := sdk.Operations.GetVideosOperation(ctx, state.op, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini video status check failed: %w", err)
	}
	return convertOperation(gop, state.aspectRatio), nil
}

type videoState struct {
	op          *genai.GenerateVideosOperation
	aspectRatio string
}

func convertOperation(gop *genai.GenerateVideosOperation, aspectRatio string) *ai.VideoOperation {
	op := &ai.VideoOperation{
		Name:  gop.Name,
		Done:  gop.Done,
		State: &videoState{op: gop, aspectRatio: aspectRatio},
	}
	if len(gop.Error) > 0 {
		if msg, ok := gop.Error["message"].(string); ok && msg != "" {
			op.Error = msg
		} else {
			op.Error = fmt.Sprintf("%v", gop.Error)
		}
	}
	if gop.Response != nil && len(gop.Response.GeneratedVideos) > 0 {
		if v := gop.Response.GeneratedVideos[0].Video; v != nil && v.URI != "" {
			op.Video = &ai.VideoRef{URI: v.URI, MIMEType: v.MIMEType, AspectRatio: aspectRatio}
		}
	}
	return op
}

// FetchArtifact downloads a generated file. The download URI needs the same
// API key as the generation call, sent in the x-goog-api-key header.
func (c *Client) FetchArtifact(ctx context.Context, uri string) ([]byte, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, credential.ErrNotConfigured
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact uri: %w", err)
	}

	// the key travels in a header so transport errors, which quote the URL, never carry it
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("artifact download failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	c.logger.Info("Downloaded artifact", logger.String("size", humanize.Bytes(uint64(len(data)))))
	return data, nil
}

// -- LiveProvider Implementation --

func (c *Client) Connect(ctx context.Context, config ai.LiveConfig) (ai.LiveConnection, error) {
	if c.opts.LiveTransport == TransportRaw {
		return c.connectRaw(ctx, config)
	}
	return c.connectSDK(ctx, config)
}
