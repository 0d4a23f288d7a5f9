package jobs

import (
	"context"
	"sync"

	"github.com/yegors/co-studio/internal/ai"
)

// Tracker keeps at most one active run. Starting a new run cancels the previous one.
type Tracker struct {
	poller *Poller

	mu      sync.Mutex
	current *Run
}

// NewTracker creates a tracker backed by the given poller
func NewTracker(poller *Poller) *Tracker {
	return &Tracker{poller: poller}
}

// Start cancels any active run and starts a generation job
func (t *Tracker) Start(ctx context.Context, req ai.VideoRequest, cb Callbacks) *Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.current = t.poller.Start(ctx, req, cb)
	return t.current
}

// StartExtension cancels any active run and starts an extension job
func (t *Tracker) StartExtension(ctx context.Context, prompt string, prior *Artifact, cb Callbacks) (*Run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prior == nil || prior.Ref.URI == "" {
		return nil, ErrNoSource
	}
	t.cancelLocked()
	run, err := t.poller.StartExtension(ctx, prompt, prior, cb)
	if err != nil {
		return nil, err
	}
	t.current = run
	return run, nil
}

// Current returns the active run, if any
func (t *Tracker) Current() *Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Cancel cancels the active run
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Tracker) cancelLocked() {
	if t.current != nil {
		t.current.Cancel()
		t.current = nil
	}
}
