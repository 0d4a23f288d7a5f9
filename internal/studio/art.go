package studio

import (
	"context"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
)

// ImageOptions are the art panel fields
type ImageOptions struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	AspectRatio    string `json:"aspect_ratio"`
	Style          string `json:"style"`
	SongTheme      string `json:"song_theme"`
}

// Art is the cover art panel
type Art struct {
	provider Provider
	project  *Project
	cfg      Config
	logger   *logger.Logger

	busy     busyFlag
	mu       sync.Mutex
	original *ai.Media // last generated image, the source for edits
	current  *ai.Media
}

// NewArt creates the art panel
func NewArt(provider Provider, project *Project, cfg Config, log *logger.Logger) *Art {
	return &Art{provider: provider, project: project, cfg: cfg, logger: log.Named("art")}
}

// Current returns the image on display
func (a *Art) Current() *ai.Media {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Generate creates cover art from the panel fields
func (a *Art) Generate(ctx context.Context, opts ImageOptions) (*ai.Media, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, invalid("prompt is empty")
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = ImageAspectRatios[0]
	}
	if !oneOf(ImageAspectRatios, opts.AspectRatio) {
		return nil, invalid("unsupported aspect ratio %q", opts.AspectRatio)
	}
	if !a.busy.acquire() {
		return nil, ErrBusy
	}
	defer a.busy.release()

	img, err := a.provider.GenerateImage(ctx, ai.ImageRequest{
		Model:       a.cfg.Models.Image,
		Prompt:      imagePrompt(opts.Prompt, opts.NegativePrompt, opts.Style, opts.SongTheme),
		AspectRatio: opts.AspectRatio,
		MIMEType:    "image/jpeg",
	})
	if err != nil {
		a.logger.Error("Image generation failed", logger.Error(err))
		return nil, failed("art", imageFailed, err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrEmptyResult
	}

	a.mu.Lock()
	a.original, a.current = img, img
	a.mu.Unlock()
	a.project.Put(ArtifactArtwork, img.Data, img.MIMEType)
	a.logger.Info("Generated cover art",
		logger.String("aspect_ratio", opts.AspectRatio),
		logger.String("size", humanize.Bytes(uint64(len(img.Data)))))
	return img, nil
}

// Edit applies an instruction to source, or to the last generated image when source is nil
func (a *Art) Edit(ctx context.Context, instruction string, source *ai.Media) (*ai.Media, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, invalid("edit instruction is empty")
	}
	if source == nil {
		a.mu.Lock()
		source = a.original
		a.mu.Unlock()
	}
	if source == nil {
		return nil, invalid("generate or upload an image first")
	}
	if source.MIMEType == "" {
		source = &ai.Media{Data: source.Data, MIMEType: "image/jpeg"}
	}
	if !a.busy.acquire() {
		return nil, ErrBusy
	}
	defer a.busy.release()

	img, err := a.provider.EditImage(ctx, a.cfg.Models.ImageEdit, instruction, *source)
	if err != nil {
		a.logger.Error("Image editing failed", logger.Error(err))
		return nil, failed("art", editFailed, err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrEmptyResult
	}

	a.mu.Lock()
	a.current = img
	a.mu.Unlock()
	a.project.Put(ArtifactArtwork, img.Data, img.MIMEType)
	return img, nil
}

// Concepts suggests three cover art ideas for the lyrics
func (a *Art) Concepts(ctx context.Context, lyrics string) (string, error) {
	if strings.TrimSpace(lyrics) == "" {
		lyrics = a.project.Lyrics()
	}
	if strings.TrimSpace(lyrics) == "" {
		return "", invalid("lyrics are empty")
	}
	res, err := a.provider.GenerateText(ctx, nil, artConceptsPrompt(lyrics), nil, ai.TextConfig{
		Model:             a.cfg.Models.Fast,
		SystemInstruction: conceptsInstruction,
	})
	if err != nil {
		return "", failed("art", conceptsFailed, err)
	}
	return FormatResponse(res.Text), nil
}
