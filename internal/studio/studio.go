package studio

import (
	"context"
	"errors"
	"sync"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/audio"
	"github.com/yegors/co-studio/internal/jobs"
	"github.com/yegors/co-studio/pkg/logger"
)

// Provider is the part of the generative API the panels call directly
type Provider interface {
	ai.TextProvider
	ai.ImageProvider
	ai.SpeechProvider
}

// Models selects the model used for each kind of call
type Models struct {
	Fast      string
	Pro       string
	Speech    string
	Image     string
	ImageEdit string
	Video     string
}

// Config holds panel settings
type Config struct {
	Models         Models
	ThinkingBudget int
	Resolution     string
	MaxFrames      int
	ProjectTitle   string
	DefaultVoice   string
}

// Studio groups the panels of one project
type Studio struct {
	Project       *Project
	Songwriting   *Songwriting
	Wizard        *Wizard
	Vocals        *Vocals
	Art           *Art
	Video         *Video
	Monetization  *Monetization
	Transcription *Transcription
}

// New wires every panel to the provider. Video jobs run through videos.
func New(provider Provider, videos *jobs.Tracker, cfg Config, log *logger.Logger) *Studio {
	project := NewProject(cfg.ProjectTitle)
	voice := speaker{provider: provider, model: cfg.Models.Speech, defaultVoice: cfg.DefaultVoice}

	return &Studio{
		Project:       project,
		Songwriting:   NewSongwriting(provider, project, cfg, log),
		Wizard:        NewWizard(provider, voice, project, cfg, log),
		Vocals:        NewVocals(voice, project, log),
		Art:           NewArt(provider, project, cfg, log),
		Video:         NewVideo(provider, videos, project, cfg, log),
		Monetization:  NewMonetization(provider, project, cfg, log),
		Transcription: NewTranscription(project),
	}
}

// Close cancels background work
func (s *Studio) Close() {
	s.Video.Cancel()
}

// failed converts a remote failure into the panel's status text. Soft
// outcomes and rejected input pass through unchanged.
func failed(panel, message string, err error) error {
	if errors.Is(err, ErrEmptyResult) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return &PanelError{Panel: panel, Message: message, Err: err}
}

// busyFlag mirrors the loading state of a panel control
type busyFlag struct {
	mu   sync.Mutex
	busy bool
}

func (b *busyFlag) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy {
		return false
	}
	b.busy = true
	return true
}

func (b *busyFlag) release() {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()
}

// speaker turns text into a playable WAV track
type speaker struct {
	provider     ai.SpeechProvider
	model        string
	defaultVoice string
}

func (s speaker) speak(ctx context.Context, text, voice, style string) ([]byte, error) {
	if voice == "" {
		voice = s.defaultVoice
	}
	if !oneOf(Voices, voice) {
		return nil, invalid("unknown voice %q", voice)
	}

	pcm, err := s.provider.GenerateSpeech(ctx, ai.SpeechRequest{
		Model: s.model,
		Text:  speechText(text, style),
		Voice: voice,
	})
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyResult
	}
	return audio.SpeechWAV(pcm), nil
}
