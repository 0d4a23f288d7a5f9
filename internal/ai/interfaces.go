package ai

import (
	"context"
)

// Role values used in chat history
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Media is an inline binary payload (image, frame, audio)
type Media struct {
	Data     []byte
	MIMEType string
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string
	Content string
}

// TextConfig holds configuration for one-shot text generation
type TextConfig struct {
	Model             string
	SystemInstruction string
	Temperature       *float32
	TopP              *float32
	ThinkingBudget    int  // 0 disables extended thinking
	UseSearch         bool // enable search grounding
}

// Source is a grounding reference returned with a searched answer
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// TextResult is the answer to a text request
type TextResult struct {
	Text    string
	Sources []Source
}

// TextProvider defines text generation (chat, lyrics, plans, analysis)
type TextProvider interface {
	// GenerateText sends the history plus a prompt and returns the model reply.
	// Media parts, when present, are attached to the prompt turn.
	GenerateText(ctx context.Context, history []ChatMessage, prompt string, media []Media, config TextConfig) (*TextResult, error)
}

// ImageRequest describes an image generation call
type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	MIMEType    string
}

// ImageProvider defines image generation and editing
type ImageProvider interface {
	// GenerateImage returns the first generated image, or nil when nothing was produced
	GenerateImage(ctx context.Context, req ImageRequest) (*Media, error)

	// EditImage applies an instruction to a source image and returns the edited image, or nil
	EditImage(ctx context.Context, model, instruction string, source Media) (*Media, error)
}

// SpeechRequest describes a text-to-speech call
type SpeechRequest struct {
	Model string
	Text  string
	Voice string
}

// SpeechProvider defines text-to-speech. The result is raw 16-bit PCM at 24 kHz,
// or nil when the model returned no audio.
type SpeechProvider interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// VideoRef points at a generated video artifact
type VideoRef struct {
	URI         string `json:"uri"`
	MIMEType    string `json:"mime_type,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// VideoRequest describes a video generation or extension call
type VideoRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	Resolution  string
	Image       *Media    // optional start frame
	Source      *VideoRef // set when extending a previous video
}

// VideoOperation is the provider's long-running operation handle
type VideoOperation struct {
	Name  string
	Done  bool
	Video *VideoRef
	Error string

	// State carries whatever the provider needs to check the operation again
	State any
}

// VideoProvider defines the long-running video generation API
type VideoProvider interface {
	// CreateVideo issues the creation call and returns immediately
	CreateVideo(ctx context.Context, req VideoRequest) (*VideoOperation, error)

	// CheckVideo issues one status check
	CheckVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)

	// FetchArtifact downloads a finished artifact using the generation credential
	FetchArtifact(ctx context.Context, uri string) ([]byte, error)
}

// LiveConfig holds configuration for a live audio session
type LiveConfig struct {
	Model               string
	Voice               string
	SystemInstruction   string
	AudioOutput         bool // model answers with audio
	InputTranscription  bool
	OutputTranscription bool
}

// LiveMessage is one inbound server message, already split into its parts
type LiveMessage struct {
	Audio        [][]byte // raw PCM chunks
	AudioMIME    string
	Corrupt      int // audio parts that could not be decoded
	InputText    string
	OutputText   string
	TurnComplete bool
	Interrupted  bool
}

// LiveConnection is an open bidirectional session
type LiveConnection interface {
	// SendAudio sends one framed capture chunk
	SendAudio(data []byte, mimeType string) error

	// Receive blocks for the next server message. io.EOF marks a clean close.
	Receive() (*LiveMessage, error)

	// Close closes the connection
	Close() error
}

// LiveProvider opens live sessions
type LiveProvider interface {
	Connect(ctx context.Context, config LiveConfig) (LiveConnection, error)
}
