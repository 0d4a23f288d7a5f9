package studio

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ArtifactKind names a downloadable project artifact
type ArtifactKind string

const (
	ArtifactLyrics     ArtifactKind = "lyrics"
	ArtifactVocals     ArtifactKind = "vocals"
	ArtifactTranscript ArtifactKind = "transcript"
	ArtifactArtwork    ArtifactKind = "artwork"
	ArtifactVideo      ArtifactKind = "video"
	ArtifactPlan       ArtifactKind = "monetization-plan"
)

var artifactExt = map[ArtifactKind]string{
	ArtifactLyrics:     ".txt",
	ArtifactVocals:     ".wav",
	ArtifactTranscript: ".txt",
	ArtifactArtwork:    ".jpg",
	ArtifactVideo:      ".mp4",
	ArtifactPlan:       ".txt",
}

// ParseArtifactKind validates a kind from a URL
func ParseArtifactKind(s string) (ArtifactKind, error) {
	k := ArtifactKind(s)
	if _, ok := artifactExt[k]; !ok {
		return "", invalid("unknown artifact %q", s)
	}
	return k, nil
}

// Artifact is an in-memory generated file
type Artifact struct {
	Data      []byte
	MIMEType  string
	UpdatedAt time.Time
}

// Download is an artifact ready to be served as a file
type Download struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Project holds state shared by all panels: the title used in download
// names, the lyrics published by the songwriting chat, and the latest
// artifact of every kind. Nothing is persisted.
type Project struct {
	mu        sync.RWMutex
	title     string
	lyrics    string
	artifacts map[ArtifactKind]*Artifact
}

// NewProject creates a project with the given title
func NewProject(title string) *Project {
	return &Project{
		title:     title,
		artifacts: make(map[ArtifactKind]*Artifact),
	}
}

// Title returns the project title
func (p *Project) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.title
}

// SetTitle renames the project
func (p *Project) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title is required")
	}
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
	return nil
}

// Lyrics returns the lyrics published by the songwriting chat
func (p *Project) Lyrics() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lyrics
}

// PublishLyrics replaces the shared lyrics. An empty string clears them.
func (p *Project) PublishLyrics(text string) {
	p.mu.Lock()
	p.lyrics = text
	p.mu.Unlock()
}

// Put stores the latest artifact of a kind
func (p *Project) Put(kind ArtifactKind, data []byte, mimeType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.artifacts[kind] = &Artifact{Data: data, MIMEType: mimeType, UpdatedAt: time.Now()}
}

// Clear removes the artifact of a kind
func (p *Project) Clear(kind ArtifactKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.artifacts, kind)
}

// Has reports whether an artifact of the kind exists
func (p *Project) Has(kind ArtifactKind) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.artifacts[kind]
	return ok
}

// Download returns the artifact with its file name, e.g. "My AI Project-vocals.wav"
func (p *Project) Download(kind ArtifactKind) (*Download, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.artifacts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, kind)
	}
	return &Download{
		Filename: Filename(p.title, kind),
		MIMEType: a.MIMEType,
		Data:     a.Data,
	}, nil
}

var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-", "\"", "'", "\n", " ", "\r", " ")

// Filename builds "{title}-{kind}{ext}"
func Filename(title string, kind ArtifactKind) string {
	return filenameReplacer.Replace(title) + "-" + string(kind) + artifactExt[kind]
}
