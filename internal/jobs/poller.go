package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/metrics"
	"github.com/yegors/co-studio/pkg/logger"
)

// Progress messages reported through Callbacks.OnTick and by the video panel
const (
	PhaseStarting            = "Starting video generation..."
	PhaseProcessing          = "Video is processing. This may take a few minutes..."
	PhaseExtending           = "Starting video extension..."
	PhaseExtensionProcessing = "Extension is processing..."
	PhaseChecking            = "Checking video status..."
	PhaseComplete            = "Video generation complete!"
	PhaseNoURL               = "Video generation finished but no URL found."
	PhasePollFailed          = "Error checking video status. Please try again."
	PhaseStartFailed         = "Failed to start video generation."
	PhaseExtendFailed        = "Failed to start video extension."
	PhaseTimedOut            = "Video generation is taking too long. Please try again."
)

// Job kinds, used as metric labels
const (
	KindGenerate = "generate"
	KindExtend   = "extend"
)

// Options configures a Poller
type Options struct {
	Interval    time.Duration // delay between status checks
	MaxPolls    int           // <= 0 polls until the job finishes
	ExtendModel string        // model used by StartExtension
	Resolution  string        // resolution requested for extensions
}

// Handle identifies a submitted job. It carries the provider operation so the
// job can be checked again.
type Handle struct {
	ID    string
	Kind  string
	Op    *ai.VideoOperation
	Polls int
}

// Artifact is a finished video: its reference plus the downloaded bytes
type Artifact struct {
	Ref  ai.VideoRef
	Data []byte
}

// Callbacks receive progress and the terminal result of a run. OnTick fires
// once before every status check. OnDone and OnError are mutually exclusive
// and called at most once.
type Callbacks struct {
	OnPhase func(phase string) // submission phases (starting, processing)
	OnTick  func(phase string)
	OnDone  func(artifact *Artifact) // nil artifact: finished without a video
	OnError func(err error)
}

func (cb Callbacks) phase(phase string) {
	if cb.OnPhase != nil {
		cb.OnPhase(phase)
	}
}

func (cb Callbacks) tick(phase string) {
	if cb.OnTick != nil {
		cb.OnTick(phase)
	}
}

func (cb Callbacks) done(a *Artifact) {
	if cb.OnDone != nil {
		cb.OnDone(a)
	}
}

func (cb Callbacks) fail(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// Poller submits long-running video jobs and polls them to completion
type Poller struct {
	provider ai.VideoProvider
	opts     Options
	logger   *logger.Logger
}

// NewPoller creates a poller over the given provider
func NewPoller(provider ai.VideoProvider, opts Options, logger *logger.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	return &Poller{
		provider: provider,
		opts:     opts,
		logger:   logger.Named("jobs"),
	}
}

// Submit issues the creation call and returns a handle for later checks
func (p *Poller) Submit(ctx context.Context, req ai.VideoRequest) (*Handle, error) {
	kind := KindGenerate
	if req.Source != nil {
		kind = KindExtend
	}

	op, err := p.provider.CreateVideo(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrSubmit, kind, err)
	}
	metrics.IncJobStarted(kind)

	h := &Handle{ID: uuid.NewString(), Kind: kind, Op: op}
	p.logger.Info("Submitted video job",
		logger.String("id", h.ID),
		logger.String("kind", kind),
		logger.String("operation", op.Name))
	return h, nil
}

// Poll performs exactly one status check. A job that is still running is not
// an error.
func (p *Poller) Poll(ctx context.Context, h *Handle) (*Handle, error) {
	op, err := p.provider.CheckVideo(ctx, h.Op)
	if err != nil {
		metrics.IncJobPoll("error")
		return nil, &PollError{Job: h.ID, Err: err}
	}

	next := *h
	next.Op = op
	next.Polls++
	if op.Done {
		metrics.IncJobPoll("done")
	} else {
		metrics.IncJobPoll("running")
	}
	return &next, nil
}

// Run is the cancellation handle of one polling loop
type Run struct {
	ID string

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

func newRun() *Run {
	return &Run{
		ID:     uuid.NewString(),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Cancel stops the loop at the next tick boundary. A status check already in
// flight completes and may still deliver its callback. Work already submitted
// to the provider is not retracted.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancel) })
}

// Done is closed when the loop has exited
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) cancelled() bool {
	select {
	case <-r.cancel:
		return true
	default:
		return false
	}
}

// Start submits a generation job and polls it in the background
func (p *Poller) Start(ctx context.Context, req ai.VideoRequest, cb Callbacks) *Run {
	run := newRun()
	go p.loop(ctx, run, req, PhaseStarting, PhaseProcessing, cb)
	return run
}

// StartExtension submits a job that continues a previously finished video
func (p *Poller) StartExtension(ctx context.Context, prompt string, prior *Artifact, cb Callbacks) (*Run, error) {
	if prior == nil || prior.Ref.URI == "" {
		return nil, ErrNoSource
	}
	ref := prior.Ref
	req := ai.VideoRequest{
		Model:       p.opts.ExtendModel,
		Prompt:      prompt,
		AspectRatio: ref.AspectRatio,
		Resolution:  p.opts.Resolution,
		Source:      &ref,
	}

	run := newRun()
	go p.loop(ctx, run, req, PhaseExtending, PhaseExtensionProcessing, cb)
	return run, nil
}

func (p *Poller) loop(ctx context.Context, run *Run, req ai.VideoRequest, starting, processing string, cb Callbacks) {
	defer close(run.done)

	cb.phase(starting)
	h, err := p.Submit(ctx, req)
	if err != nil {
		p.logger.Error("Video job failed to start", logger.Error(err))
		metrics.IncJobFinished("failed")
		cb.fail(err)
		return
	}
	if run.cancelled() {
		metrics.IncJobFinished("cancelled")
		return
	}
	cb.phase(processing)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-run.cancel:
			p.logger.Info("Video job polling cancelled", logger.String("id", h.ID), logger.Int("polls", h.Polls))
			metrics.IncJobFinished("cancelled")
			return
		case <-ctx.Done():
			p.logger.Info("Video job polling stopped", logger.String("id", h.ID), logger.Error(ctx.Err()))
			metrics.IncJobFinished("cancelled")
			return
		case <-ticker.C:
			if run.cancelled() {
				metrics.IncJobFinished("cancelled")
				return
			}
		}

		cb.tick(PhaseChecking)
		next, err := p.Poll(ctx, h)
		if err != nil {
			p.logger.Error("Video status check failed", logger.String("id", h.ID), logger.Error(err))
			metrics.IncJobFinished("failed")
			cb.fail(err)
			return
		}
		h = next

		if h.Op.Done {
			p.finish(ctx, h, cb)
			return
		}

		if p.opts.MaxPolls > 0 && h.Polls >= p.opts.MaxPolls {
			p.logger.Warn("Video job exceeded poll limit",
				logger.String("id", h.ID),
				logger.Int("polls", h.Polls))
			metrics.IncJobFinished("limit")
			cb.fail(fmt.Errorf("%w (%d checks)", ErrPollLimit, h.Polls))
			return
		}
	}
}

func (p *Poller) finish(ctx context.Context, h *Handle, cb Callbacks) {
	op := h.Op
	switch {
	case op.Error != "":
		metrics.IncJobFinished("failed")
		cb.fail(&JobFailedError{Job: h.ID, Message: op.Error})
	case op.Video == nil || op.Video.URI == "":
		p.logger.Warn("Video job finished without a video", logger.String("id", h.ID))
		metrics.IncJobFinished("empty")
		cb.done(nil)
	default:
		data, err := p.provider.FetchArtifact(ctx, op.Video.URI)
		if err != nil {
			metrics.IncJobFinished("failed")
			cb.fail(fmt.Errorf("failed to download video: %w", err))
			return
		}
		p.logger.Info("Video job complete",
			logger.String("id", h.ID),
			logger.Int("polls", h.Polls),
			logger.String("size", humanize.Bytes(uint64(len(data)))))
		metrics.IncJobFinished("done")
		cb.done(&Artifact{Ref: *op.Video, Data: data})
	}
}
