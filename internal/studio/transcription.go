package studio

import (
	"strings"
	"sync"
)

// Transcription accumulates the text of the live transcription panel
type Transcription struct {
	project *Project

	mu   sync.Mutex
	text strings.Builder
}

// NewTranscription creates the transcription panel
func NewTranscription(project *Project) *Transcription {
	return &Transcription{project: project}
}

// Begin clears the text for a new recording
func (t *Transcription) Begin() {
	t.mu.Lock()
	t.text.Reset()
	t.mu.Unlock()
	t.project.Clear(ArtifactTranscript)
}

// Append adds an input transcription fragment
func (t *Transcription) Append(fragment string) {
	if fragment == "" {
		return
	}
	t.mu.Lock()
	t.text.WriteString(fragment)
	text := t.text.String()
	t.mu.Unlock()
	t.project.Put(ArtifactTranscript, []byte(text), "text/plain; charset=utf-8")
}

// Text returns everything transcribed since Begin
func (t *Transcription) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}
