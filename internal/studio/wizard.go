package studio

import (
	"context"
	"strings"
	"sync"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
)

// WizardResult is the outcome of the idea-to-lyrics step
type WizardResult struct {
	Lyrics   string `json:"lyrics"`
	Concepts string `json:"concepts,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Wizard turns one idea into lyrics, art concepts and a vocal track
type Wizard struct {
	provider ai.TextProvider
	voice    speaker
	project  *Project
	cfg      Config
	logger   *logger.Logger

	busy   busyFlag
	mu     sync.Mutex
	lyrics string
}

// NewWizard creates the wizard panel
func NewWizard(provider ai.TextProvider, voice speaker, project *Project, cfg Config, log *logger.Logger) *Wizard {
	return &Wizard{
		provider: provider,
		voice:    voice,
		project:  project,
		cfg:      cfg,
		logger:   log.Named("wizard"),
	}
}

// Lyrics returns the lyrics of the last successful run
func (w *Wizard) Lyrics() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lyrics
}

// Compose writes lyrics for the idea with the pro model, then asks the fast
// model for cover art concepts based on them.
func (w *Wizard) Compose(ctx context.Context, idea string) (*WizardResult, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, invalid("idea is empty")
	}
	if !w.busy.acquire() {
		return nil, ErrBusy
	}
	defer w.busy.release()

	w.mu.Lock()
	w.lyrics = ""
	w.mu.Unlock()

	res, err := w.provider.GenerateText(ctx, nil, wizardLyricsPrompt(idea), nil, ai.TextConfig{
		Model:             w.cfg.Models.Pro,
		SystemInstruction: appContext,
	})
	if err != nil {
		w.logger.Error("Wizard failed at lyrics step", logger.Error(err))
		return nil, failed("wizard", lyricsFailed, err)
	}
	lyrics := FormatResponse(res.Text)
	if strings.TrimSpace(lyrics) == "" {
		return nil, ErrEmptyResult
	}

	w.mu.Lock()
	w.lyrics = lyrics
	w.mu.Unlock()
	w.project.Put(ArtifactLyrics, []byte(lyrics), "text/plain; charset=utf-8")

	result := &WizardResult{Lyrics: lyrics}
	concepts, err := w.provider.GenerateText(ctx, nil, artConceptsPrompt(lyrics), nil, ai.TextConfig{
		Model:             w.cfg.Models.Fast,
		SystemInstruction: conceptsInstruction,
	})
	if err != nil {
		w.logger.Warn("Wizard failed at concepts step", logger.Error(err))
		result.Status = conceptsFailed
		return result, nil
	}
	result.Concepts = FormatResponse(concepts.Text)
	return result, nil
}

// VocalTrack sings the composed lyrics and returns a WAV file
func (w *Wizard) VocalTrack(ctx context.Context, voice, style string) ([]byte, error) {
	lyrics := w.Lyrics()
	if lyrics == "" {
		return nil, invalid("compose lyrics first")
	}
	if !w.busy.acquire() {
		return nil, ErrBusy
	}
	defer w.busy.release()

	wav, err := w.voice.speak(ctx, lyrics, voice, style)
	if err != nil {
		w.logger.Error("Wizard vocal generation failed", logger.Error(err))
		return nil, failed("wizard", speechFailed, err)
	}
	w.project.Put(ArtifactVocals, wav, "audio/wav")
	return wav, nil
}
