package studio

import (
	"context"
	"strings"
	"sync"

	"github.com/yegors/co-studio/internal/live"
	"github.com/yegors/co-studio/pkg/logger"
)

// VocalRequest is what the vocal panel sends for a track
type VocalRequest struct {
	Lyrics string `json:"lyrics"`
	Voice  string `json:"voice"`
	Style  string `json:"style"`
}

// Vocals is the vocal studio panel: speech tracks, voice previews and the
// transcript of the live vocal coach.
type Vocals struct {
	voice   speaker
	project *Project
	logger  *logger.Logger

	busy  busyFlag
	mu    sync.Mutex
	turns []live.Turn
}

// NewVocals creates the vocal panel
func NewVocals(voice speaker, project *Project, log *logger.Logger) *Vocals {
	return &Vocals{voice: voice, project: project, logger: log.Named("vocals")}
}

// Generate produces a WAV track for the lyrics
func (v *Vocals) Generate(ctx context.Context, req VocalRequest) ([]byte, error) {
	if strings.TrimSpace(req.Lyrics) == "" {
		return nil, invalid("lyrics are empty")
	}
	return v.render(ctx, req.Lyrics, req)
}

// Revise regenerates the track taking feedback into account
func (v *Vocals) Revise(ctx context.Context, req VocalRequest, feedback string) ([]byte, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, invalid("feedback is empty")
	}
	return v.render(ctx, vocalRevisionPrompt(feedback, req.Lyrics), req)
}

func (v *Vocals) render(ctx context.Context, text string, req VocalRequest) ([]byte, error) {
	if !v.busy.acquire() {
		return nil, ErrBusy
	}
	defer v.busy.release()

	v.project.Clear(ArtifactVocals)
	wav, err := v.voice.speak(ctx, text, req.Voice, req.Style)
	if err != nil {
		v.logger.Error("Failed to generate speech", logger.String("voice", req.Voice), logger.Error(err))
		return nil, failed("vocals", speechFailed, err)
	}
	v.project.Put(ArtifactVocals, wav, "audio/wav")
	return wav, nil
}

// Preview speaks a short phrase in the given voice
func (v *Vocals) Preview(ctx context.Context, voice string) ([]byte, error) {
	wav, err := v.voice.speak(ctx, voicePreviewPhrase, voice, "")
	if err != nil {
		v.logger.Warn("Failed to preview voice", logger.String("voice", voice), logger.Error(err))
		return nil, failed("vocals", speechFailed, err)
	}
	return wav, nil
}

// BeginCoaching clears the coach transcript for a new session
func (v *Vocals) BeginCoaching() {
	v.mu.Lock()
	v.turns = nil
	v.mu.Unlock()
}

// RecordTurn appends a finalized coach turn
func (v *Vocals) RecordTurn(turn live.Turn) {
	v.mu.Lock()
	v.turns = append(v.turns, turn)
	v.mu.Unlock()
}

// CoachTranscript returns the coach turns of the current or last session
func (v *Vocals) CoachTranscript() []live.Turn {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]live.Turn(nil), v.turns...)
}
