package jobs

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
)

// fakeProvider returns not-done for the first pending checks, then the final operation
type fakeProvider struct {
	mu sync.Mutex

	createErr error
	pending   int
	checkErr  error // returned on the check after pending ones
	final     ai.VideoOperation
	artifact  []byte
	fetchErr  error
	block     chan struct{} // when set, CheckVideo waits on it

	requests []ai.VideoRequest
	checks   int
	fetched  []string
}

func (f *fakeProvider) CreateVideo(ctx context.Context, req ai.VideoRequest) (*ai.VideoOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ai.VideoOperation{Name: "operations/test"}, nil
}

func (f *fakeProvider) CheckVideo(ctx context.Context, op *ai.VideoOperation) (*ai.VideoOperation, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checks <= f.pending {
		return &ai.VideoOperation{Name: op.Name}, nil
	}
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	final := f.final
	final.Name = op.Name
	final.Done = true
	return &final, nil
}

func (f *fakeProvider) FetchArtifact(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, uri)
	return f.artifact, f.fetchErr
}

func (f *fakeProvider) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

// recorder collects callbacks from one run
type recorder struct {
	mu       sync.Mutex
	phases   []string
	ticks    []string
	dones    int
	artifact *Artifact
	errs     []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPhase: func(phase string) {
			r.mu.Lock()
			r.phases = append(r.phases, phase)
			r.mu.Unlock()
		},
		OnTick: func(phase string) {
			r.mu.Lock()
			r.ticks = append(r.ticks, phase)
			r.mu.Unlock()
		},
		OnDone: func(a *Artifact) {
			r.mu.Lock()
			r.dones++
			r.artifact = a
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) count(phase string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.ticks {
		if t == phase {
			n++
		}
	}
	return n
}

func newTestPoller(p ai.VideoProvider, maxPolls int) *Poller {
	return NewPoller(p, Options{
		Interval:    time.Millisecond,
		MaxPolls:    maxPolls,
		ExtendModel: "extend-model",
		Resolution:  "720p",
	}, logger.NewNop())
}

func waitRun(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestStartCompletesWithArtifact(t *testing.T) {
	video := []byte("video-bytes")
	provider := &fakeProvider{
		pending:  3,
		final:    ai.VideoOperation{Video: &ai.VideoRef{URI: "https://example/v?alt=media", AspectRatio: "16:9"}},
		artifact: video,
	}
	rec := &recorder{}

	run := newTestPoller(provider, 0).Start(context.Background(), ai.VideoRequest{Prompt: "neon city"}, rec.callbacks())
	waitRun(t, run)

	if rec.dones != 1 || len(rec.errs) != 0 {
		t.Fatalf("dones = %d, errs = %v", rec.dones, rec.errs)
	}
	if rec.artifact == nil || !bytes.Equal(rec.artifact.Data, video) {
		t.Fatalf("artifact = %+v", rec.artifact)
	}
	if rec.artifact.Ref.AspectRatio != "16:9" {
		t.Errorf("aspect ratio = %q", rec.artifact.Ref.AspectRatio)
	}
	if got := provider.checkCount(); got != 4 {
		t.Errorf("checks = %d, want 4", got)
	}
	if len(rec.ticks) != 4 || rec.count(PhaseChecking) != 4 {
		t.Errorf("ticks = %v, want 4 status checks", rec.ticks)
	}
	if len(rec.phases) != 2 || rec.phases[0] != PhaseStarting || rec.phases[1] != PhaseProcessing {
		t.Errorf("phases = %v", rec.phases)
	}
	if len(provider.fetched) != 1 || provider.fetched[0] != "https://example/v?alt=media" {
		t.Errorf("fetched = %v", provider.fetched)
	}
}

func TestStartErrorPaths(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		check    func(t *testing.T, err error)
		checks   int
	}{
		{
			name:     "poll error on second check",
			provider: &fakeProvider{pending: 1, checkErr: errors.New("503")},
			checks:   2,
			check: func(t *testing.T, err error) {
				var pe *PollError
				if !errors.As(err, &pe) || !errors.Is(err, ErrJobPoll) {
					t.Fatalf("err = %v, want PollError", err)
				}
			},
		},
		{
			name:     "remote failure",
			provider: &fakeProvider{final: ai.VideoOperation{Error: "safety filter"}},
			checks:   1,
			check: func(t *testing.T, err error) {
				var jf *JobFailedError
				if !errors.As(err, &jf) || jf.Message != "safety filter" {
					t.Fatalf("err = %v, want JobFailedError", err)
				}
			},
		},
		{
			name: "download failure",
			provider: &fakeProvider{
				final:    ai.VideoOperation{Video: &ai.VideoRef{URI: "u"}},
				fetchErr: errors.New("403"),
			},
			checks: 1,
			check: func(t *testing.T, err error) {
				if err == nil || errors.Is(err, ErrJobPoll) {
					t.Fatalf("err = %v", err)
				}
			},
		},
		{
			name:     "poll limit",
			provider: &fakeProvider{pending: 100},
			checks:   3,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrPollLimit) {
					t.Fatalf("err = %v, want ErrPollLimit", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			run := newTestPoller(tt.provider, 3).Start(context.Background(), ai.VideoRequest{}, rec.callbacks())
			waitRun(t, run)

			if rec.dones != 0 || len(rec.errs) != 1 {
				t.Fatalf("dones = %d, errs = %v", rec.dones, rec.errs)
			}
			tt.check(t, rec.errs[0])
			if got := tt.provider.checkCount(); got != tt.checks {
				t.Errorf("checks = %d, want %d", got, tt.checks)
			}
		})
	}
}

func TestStartSubmitFailure(t *testing.T) {
	provider := &fakeProvider{createErr: errors.New("quota")}
	rec := &recorder{}

	run := newTestPoller(provider, 0).Start(context.Background(), ai.VideoRequest{}, rec.callbacks())
	waitRun(t, run)

	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], ErrSubmit) {
		t.Fatalf("errs = %v", rec.errs)
	}
	if len(rec.ticks) != 0 || provider.checkCount() != 0 {
		t.Fatal("no status checks expected after a failed submit")
	}
}

func TestStartDoneWithoutVideo(t *testing.T) {
	provider := &fakeProvider{}
	rec := &recorder{}

	run := newTestPoller(provider, 0).Start(context.Background(), ai.VideoRequest{}, rec.callbacks())
	waitRun(t, run)

	if rec.dones != 1 || rec.artifact != nil || len(rec.errs) != 0 {
		t.Fatalf("dones = %d, artifact = %v, errs = %v", rec.dones, rec.artifact, rec.errs)
	}
	if len(provider.fetched) != 0 {
		t.Fatal("nothing should be downloaded")
	}
}

func TestCancelStopsScheduling(t *testing.T) {
	provider := &fakeProvider{pending: 1 << 20, block: make(chan struct{})}
	rec := &recorder{}

	run := newTestPoller(provider, 0).Start(context.Background(), ai.VideoRequest{}, rec.callbacks())

	// Wait for the first check to be in flight, then cancel and release it.
	deadline := time.After(5 * time.Second)
	for rec.count(PhaseChecking) == 0 {
		select {
		case <-deadline:
			t.Fatal("no check started")
		case <-time.After(time.Millisecond):
		}
	}
	run.Cancel()
	run.Cancel()
	close(provider.block)
	waitRun(t, run)

	if got := provider.checkCount(); got != 1 {
		t.Fatalf("checks after cancel = %d, want 1", got)
	}
	if rec.dones != 0 || len(rec.errs) != 0 {
		t.Fatalf("unexpected terminal callback: dones=%d errs=%v", rec.dones, rec.errs)
	}
}

func TestStartExtension(t *testing.T) {
	provider := &fakeProvider{
		final:    ai.VideoOperation{Video: &ai.VideoRef{URI: "u2"}},
		artifact: []byte("longer"),
	}
	poller := newTestPoller(provider, 0)

	if _, err := poller.StartExtension(context.Background(), "more", nil, Callbacks{}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}

	prior := &Artifact{Ref: ai.VideoRef{URI: "u1", AspectRatio: "9:16"}}
	rec := &recorder{}
	run, err := poller.StartExtension(context.Background(), "more", prior, rec.callbacks())
	if err != nil {
		t.Fatalf("StartExtension: %v", err)
	}
	waitRun(t, run)

	req := provider.requests[0]
	if req.Model != "extend-model" || req.Source == nil || req.Source.URI != "u1" || req.AspectRatio != "9:16" || req.Resolution != "720p" {
		t.Fatalf("request = %+v", req)
	}
	if len(rec.phases) != 2 || rec.phases[0] != PhaseExtending || rec.phases[1] != PhaseExtensionProcessing {
		t.Errorf("phases = %v", rec.phases)
	}
	if rec.artifact == nil || string(rec.artifact.Data) != "longer" {
		t.Errorf("artifact = %+v", rec.artifact)
	}
}

func TestTrackerReplacesRun(t *testing.T) {
	slow := &fakeProvider{pending: 1 << 20}
	tracker := NewTracker(newTestPoller(slow, 0))

	first := tracker.Start(context.Background(), ai.VideoRequest{Prompt: "a"}, Callbacks{})
	second := tracker.Start(context.Background(), ai.VideoRequest{Prompt: "b"}, Callbacks{})

	waitRun(t, first)
	if tracker.Current() != second {
		t.Fatal("tracker should hold the newest run")
	}
	select {
	case <-second.Done():
		t.Fatal("second run should still be polling")
	default:
	}

	tracker.Cancel()
	waitRun(t, second)
	if tracker.Current() != nil {
		t.Fatal("no run expected after Cancel")
	}
}

func TestScenarioSecondPollDelivers(t *testing.T) {
	provider := &fakeProvider{
		pending:  1,
		final:    ai.VideoOperation{Video: &ai.VideoRef{URI: "abc"}},
		artifact: []byte("B"),
	}
	rec := &recorder{}

	run := newTestPoller(provider, 0).Start(context.Background(), ai.VideoRequest{Prompt: "X"}, rec.callbacks())
	waitRun(t, run)

	if provider.requests[0].Prompt != "X" {
		t.Fatalf("prompt = %q", provider.requests[0].Prompt)
	}
	if rec.dones != 1 || len(rec.errs) != 0 || len(rec.ticks) != 2 {
		t.Fatalf("dones = %d, errs = %v, ticks = %v", rec.dones, rec.errs, rec.ticks)
	}
	if string(rec.artifact.Data) != "B" || rec.artifact.Ref.URI != "abc" {
		t.Fatalf("artifact = %+v", rec.artifact)
	}
	if provider.checkCount() != 2 {
		t.Fatalf("checks = %d, want 2", provider.checkCount())
	}
}
