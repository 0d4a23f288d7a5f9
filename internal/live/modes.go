package live

import (
	"fmt"

	"github.com/yegors/co-studio/internal/ai"
)

// Mode selects what a live session is used for
type Mode string

const (
	// ModeCoach is a spoken conversation with the vocal coach
	ModeCoach Mode = "coach"

	// ModeTranscribe only transcribes the microphone
	ModeTranscribe Mode = "transcribe"
)

const (
	coachInstruction = `You are a friendly and encouraging vocal coach within the "AI Music Studio Pro" application. ` +
		`The user is practicing their singing and needs real-time feedback, tips, and exercises. ` +
		`Keep your responses concise, positive, and helpful.`

	transcribeInstruction = "You are a highly accurate real-time audio transcription service."
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCoach, ModeTranscribe:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown live mode: %q", s)
	}
}

// PlaysAudio reports whether the mode needs an output context
func (m Mode) PlaysAudio() bool {
	return m == ModeCoach
}

// LiveConfig builds the connection config for the mode
func (m Mode) LiveConfig(model, voice string) ai.LiveConfig {
	if m == ModeCoach {
		return ai.LiveConfig{
			Model:               model,
			Voice:               voice,
			SystemInstruction:   coachInstruction,
			AudioOutput:         true,
			InputTranscription:  true,
			OutputTranscription: true,
		}
	}
	return ai.LiveConfig{
		Model:              model,
		SystemInstruction:  transcribeInstruction,
		InputTranscription: true,
	}
}
