package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/jobs"
	"github.com/yegors/co-studio/pkg/logger"
)

// VideoOptions are the generate form fields
type VideoOptions struct {
	Prompt      string    `json:"prompt"`
	AspectRatio string    `json:"aspect_ratio"`
	Style       string    `json:"style"`
	StartImage  *ai.Media `json:"-"`
}

// VideoStatus is the panel state rendered by the browser
type VideoStatus struct {
	RunID     string       `json:"run_id,omitempty"`
	Message   string       `json:"message"`
	Running   bool         `json:"running"`
	Extending bool         `json:"extending"`
	HasVideo  bool         `json:"has_video"`
	Video     *ai.VideoRef `json:"video,omitempty"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ProgressFunc receives every status change
type ProgressFunc func(VideoStatus)

// Video is the music video panel. At most one generation or extension runs
// at a time; starting another cancels the previous run.
type Video struct {
	provider ai.TextProvider
	tracker  *jobs.Tracker
	project  *Project
	cfg      Config
	logger   *logger.Logger

	mu         sync.Mutex
	gen        uint64 // identifies the run whose callbacks may update status
	status     VideoStatus
	last       *jobs.Artifact
	onProgress ProgressFunc
}

// NewVideo creates the video panel
func NewVideo(provider ai.TextProvider, tracker *jobs.Tracker, project *Project, cfg Config, log *logger.Logger) *Video {
	return &Video{
		provider: provider,
		tracker:  tracker,
		project:  project,
		cfg:      cfg,
		logger:   log.Named("video"),
	}
}

// OnProgress registers the status listener
func (v *Video) OnProgress(fn ProgressFunc) {
	v.mu.Lock()
	v.onProgress = fn
	v.mu.Unlock()
}

// Status returns the current panel state
func (v *Video) Status() VideoStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Generate starts a video job. It returns once the job is scheduled; progress
// is reported through Status and the progress listener.
func (v *Video) Generate(ctx context.Context, opts VideoOptions) (VideoStatus, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return VideoStatus{}, invalid("prompt is empty")
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = VideoAspectRatios[0]
	}
	if !oneOf(VideoAspectRatios, opts.AspectRatio) {
		return VideoStatus{}, invalid("unsupported aspect ratio %q", opts.AspectRatio)
	}

	req := ai.VideoRequest{
		Model:       v.cfg.Models.Video,
		Prompt:      videoPrompt(opts.Prompt, opts.Style),
		AspectRatio: opts.AspectRatio,
		Resolution:  v.cfg.Resolution,
		Image:       opts.StartImage,
	}

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.last = nil
	v.status = VideoStatus{Running: true, Message: jobs.PhaseStarting}
	v.mu.Unlock()
	v.project.Clear(ArtifactVideo)

	run := v.tracker.Start(context.WithoutCancel(ctx), req, v.callbacks(gen, false))
	return v.attach(gen, run.ID), nil
}

// Extend continues the last generated video
func (v *Video) Extend(ctx context.Context, prompt string) (VideoStatus, error) {
	if strings.TrimSpace(prompt) == "" {
		return VideoStatus{}, invalid("extension prompt is empty")
	}

	v.mu.Lock()
	prior := v.last
	if prior == nil {
		v.mu.Unlock()
		return VideoStatus{}, jobs.ErrNoSource
	}
	v.gen++
	gen := v.gen
	v.status.Running = false
	v.status.Extending = true
	v.status.Message = jobs.PhaseExtending
	v.status.Error = ""
	v.mu.Unlock()

	run, err := v.tracker.StartExtension(context.WithoutCancel(ctx), prompt, prior, v.callbacks(gen, true))
	if err != nil {
		return VideoStatus{}, err
	}
	return v.attach(gen, run.ID), nil
}

// Cancel stops polling the current job
func (v *Video) Cancel() {
	v.tracker.Cancel()
	v.mu.Lock()
	v.gen++
	if v.status.Running || v.status.Extending {
		v.status.Running, v.status.Extending = false, false
		v.status.Message = "Video polling cancelled."
	}
	v.mu.Unlock()
}

func (v *Video) attach(gen uint64, runID string) VideoStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen == gen && v.status.RunID == "" {
		v.status.RunID = runID
	}
	return v.status
}

func (v *Video) callbacks(gen uint64, extending bool) jobs.Callbacks {
	return jobs.Callbacks{
		OnPhase: func(phase string) {
			v.update(gen, func(s *VideoStatus) { s.Message = phase })
		},
		OnTick: func(phase string) {
			v.update(gen, func(s *VideoStatus) { s.Message = phase })
		},
		OnDone: func(a *jobs.Artifact) {
			if a == nil {
				v.update(gen, func(s *VideoStatus) { s.Message = jobs.PhaseNoURL })
				return
			}
			v.mu.Lock()
			current := v.gen == gen
			if current {
				v.last = a
			}
			v.mu.Unlock()
			if current {
				v.project.Put(ArtifactVideo, a.Data, videoMIME(a.Ref))
			}
			ref := a.Ref
			v.update(gen, func(s *VideoStatus) {
				s.Message = jobs.PhaseComplete
				s.HasVideo = true
				s.Video = &ref
			})
		},
		OnError: func(err error) {
			msg := jobs.PhasePollFailed
			switch {
			case errors.Is(err, jobs.ErrSubmit) && extending:
				msg = jobs.PhaseExtendFailed
			case errors.Is(err, jobs.ErrSubmit):
				msg = jobs.PhaseStartFailed
			case errors.Is(err, jobs.ErrPollLimit):
				msg = jobs.PhaseTimedOut
			}
			v.logger.Error("Video job failed", logger.Bool("extension", extending), logger.Error(err))
			v.update(gen, func(s *VideoStatus) {
				s.Message = msg
				s.Error = err.Error()
			})
		},
	}
}

// update applies a status change from run gen and notifies the listener.
// Terminal messages end the run. Callbacks from replaced runs are ignored.
func (v *Video) update(gen uint64, change func(*VideoStatus)) {
	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	change(&v.status)
	switch v.status.Message {
	case jobs.PhaseComplete, jobs.PhaseNoURL, jobs.PhasePollFailed, jobs.PhaseStartFailed,
		jobs.PhaseExtendFailed, jobs.PhaseTimedOut:
		v.status.Running, v.status.Extending = false, false
	}
	v.status.UpdatedAt = time.Now()
	status, notify := v.status, v.onProgress
	v.mu.Unlock()

	if notify != nil {
		notify(status)
	}
}

// Storyboard turns the project lyrics into a video prompt
func (v *Video) Storyboard(ctx context.Context) (string, error) {
	lyrics := v.project.Lyrics()
	if strings.TrimSpace(lyrics) == "" {
		return "", invalid("no lyrics to build a storyboard from")
	}
	res, err := v.provider.GenerateText(ctx, nil, storyboardPrompt(lyrics), nil, ai.TextConfig{
		Model:             v.cfg.Models.Pro,
		SystemInstruction: storyboardInstruction,
	})
	if err != nil {
		v.logger.Error("Failed to generate storyboard", logger.Error(err))
		return "", failed("video", storyboardFailed, err)
	}
	return res.Text, nil
}

// Analyze answers a question about a video from a handful of its frames
func (v *Video) Analyze(ctx context.Context, prompt string, frames []ai.Media) (string, error) {
	if len(frames) == 0 {
		return "", invalid("%s", noFramesMessage)
	}
	if limit := v.cfg.MaxFrames; limit > 0 && len(frames) > limit {
		return "", invalid("at most %d frames can be analyzed, got %d", limit, len(frames))
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultAnalysisRequest
	}

	res, err := v.provider.GenerateText(ctx, nil, prompt, frames, ai.TextConfig{
		Model:             v.cfg.Models.Pro,
		SystemInstruction: analysisInstruction,
	})
	if err != nil {
		v.logger.Error("Video analysis failed", logger.Int("frames", len(frames)), logger.Error(err))
		return "", failed("video", analysisFailed, err)
	}
	return FormatResponse(res.Text), nil
}

func videoMIME(ref ai.VideoRef) string {
	if ref.MIMEType != "" {
		return ref.MIMEType
	}
	return "video/mp4"
}
