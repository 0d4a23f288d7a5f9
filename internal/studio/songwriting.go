package studio

import (
	"context"
	"strings"
	"sync"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
)

// Message is one entry of the songwriting conversation
type Message struct {
	Role    string      `json:"role"`
	Text    string      `json:"text"`
	Sources []ai.Source `json:"sources,omitempty"`
}

// ChatOptions are the per-message switches of the chat panel
type ChatOptions struct {
	Thinking    bool     `json:"thinking"`
	Search      bool     `json:"search"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
}

// Songwriting is the chat panel
type Songwriting struct {
	provider ai.TextProvider
	project  *Project
	cfg      Config
	logger   *logger.Logger

	busy     busyFlag
	mu       sync.Mutex
	messages []Message
	preset   string
}

// NewSongwriting creates the chat panel
func NewSongwriting(provider ai.TextProvider, project *Project, cfg Config, log *logger.Logger) *Songwriting {
	return &Songwriting{
		provider: provider,
		project:  project,
		cfg:      cfg,
		logger:   log.Named("songwriting"),
	}
}

// Messages returns the conversation
func (s *Songwriting) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Preset returns the style preset waiting for the next prompt
func (s *Songwriting) Preset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preset
}

// SetPreset selects a style preset for the next prompt. An empty name clears it.
func (s *Songwriting) SetPreset(name string) error {
	if name != "" && !oneOf(StylePresets, name) {
		return invalid("unknown style preset %q", name)
	}
	s.mu.Lock()
	s.preset = name
	s.mu.Unlock()
	return nil
}

// Reset clears the conversation and the published lyrics
func (s *Songwriting) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.preset = ""
	s.mu.Unlock()
	s.publish()
}

// Inspiration asks for three song concepts
func (s *Songwriting) Inspiration(ctx context.Context) (string, error) {
	res, err := s.provider.GenerateText(ctx, nil, inspirationPrompt, nil, ai.TextConfig{
		Model:             s.cfg.Models.Fast,
		SystemInstruction: inspirationInstruction,
	})
	if err != nil {
		s.logger.Error("Failed to get inspiration", logger.Error(err))
		return "", failed("songwriting", inspirationFailed, err)
	}
	return res.Text, nil
}

// Send appends a user message and the model reply. A pending style preset
// is applied to this prompt and then cleared. A failed call appends an
// apology message and returns the error.
func (s *Songwriting) Send(ctx context.Context, text string, opts ChatOptions) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("message is empty")
	}
	if !s.busy.acquire() {
		return nil, ErrBusy
	}
	defer s.busy.release()

	s.mu.Lock()
	prompt := text
	if s.preset != "" {
		prompt = presetPrompt(s.preset, text)
		s.preset = ""
	}
	history := toHistory(s.messages)
	s.messages = append(s.messages, Message{Role: ai.RoleUser, Text: prompt})
	s.mu.Unlock()

	reply, err := s.generate(ctx, history, prompt, opts)

	s.mu.Lock()
	s.messages = append(s.messages, *reply)
	s.mu.Unlock()
	s.publish()
	return reply, err
}

// Revise regenerates the last model reply from feedback and replaces it
func (s *Songwriting) Revise(ctx context.Context, feedback string, opts ChatOptions) (*Message, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, invalid("feedback is empty")
	}
	if !s.busy.acquire() {
		return nil, ErrBusy
	}
	defer s.busy.release()

	s.mu.Lock()
	n := len(s.messages)
	if n == 0 || s.messages[n-1].Role != ai.RoleModel {
		s.mu.Unlock()
		return nil, invalid("there is no reply to revise")
	}
	history := toHistory(s.messages[:n-1])
	s.mu.Unlock()

	reply, err := s.generate(ctx, history, chatRevisionPrompt(feedback), opts)

	s.mu.Lock()
	if err != nil {
		s.messages = append(s.messages, *reply)
	} else {
		s.messages[len(s.messages)-1] = *reply
	}
	s.mu.Unlock()
	s.publish()
	return reply, err
}

func (s *Songwriting) generate(ctx context.Context, history []ai.ChatMessage, prompt string, opts ChatOptions) (*Message, error) {
	config := ai.TextConfig{
		Model:             s.cfg.Models.Fast,
		SystemInstruction: chatInstruction,
		Temperature:       opts.Temperature,
		TopP:              opts.TopP,
		UseSearch:         opts.Search,
	}
	if opts.Thinking {
		config.Model = s.cfg.Models.Pro
		config.ThinkingBudget = s.cfg.ThinkingBudget
	}

	res, err := s.provider.GenerateText(ctx, history, prompt, nil, config)
	if err != nil {
		s.logger.Error("Chat request failed",
			logger.String("model", config.Model),
			logger.Error(err))
		return &Message{Role: ai.RoleModel, Text: chatErrorMessage}, failed("songwriting", chatErrorMessage, err)
	}
	return &Message{Role: ai.RoleModel, Text: FormatResponse(res.Text), Sources: res.Sources}, nil
}

// publish shares the conversation as the project lyrics
func (s *Songwriting) publish() {
	s.mu.Lock()
	text := transcriptOf(s.messages)
	s.mu.Unlock()

	s.project.PublishLyrics(text)
	if text == "" {
		s.project.Clear(ArtifactLyrics)
		return
	}
	s.project.Put(ArtifactLyrics, []byte(text), "text/plain; charset=utf-8")
}

func toHistory(messages []Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ai.ChatMessage{Role: m.Role, Content: m.Text}
	}
	return out
}

func transcriptOf(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	parts := make([]string, len(messages))
	for i, m := range messages {
		who := "AI Assistant"
		if m.Role == ai.RoleUser {
			who = "You"
		}
		parts[i] = who + ":\n" + m.Text
	}
	return strings.Join(parts, "\n\n---\n\n")
}
