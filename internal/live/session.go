package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/audio"
	"github.com/yegors/co-studio/internal/metrics"
	"github.com/yegors/co-studio/pkg/logger"
)

var (
	// ErrPermission is returned when the microphone cannot be acquired
	ErrPermission = errors.New("microphone access denied")

	// ErrTransport marks connect failures and mid-session transport errors
	ErrTransport = errors.New("live transport error")

	// ErrSessionUsed is returned by Start on a session that was already started
	ErrSessionUsed = errors.New("live session already started")

	// ErrStopped is returned by Start when Stop won the race
	ErrStopped = errors.New("live session stopped")
)

// State of a session. A session moves Idle -> Starting -> Active -> Closing -> Idle once.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind distinguishes transport events
type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventErrored
	EventClosed
)

// Event is one transport event, consumed in arrival order by the session loop
type Event struct {
	Kind    EventKind
	Message *ai.LiveMessage
	Err     error
}

// Turn is one finalized exchange: what the user said and what the model answered
type Turn struct {
	User  string `json:"user"`
	Model string `json:"model"`
}

// Settings are the audio parameters of a session
type Settings struct {
	CaptureRate  int
	PlaybackRate int
	BufferSize   int // frames per capture buffer
	QueueSize    int // capture buffers waiting to be sent before new ones are dropped
}

func (s Settings) withDefaults() Settings {
	if s.CaptureRate <= 0 {
		s.CaptureRate = audio.CaptureSampleRate
	}
	if s.PlaybackRate <= 0 {
		s.PlaybackRate = audio.PlaybackSampleRate
	}
	if s.BufferSize <= 0 {
		s.BufferSize = audio.CaptureBufferSize
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 32
	}
	return s
}

// Hooks receive session output. They are called from session goroutines and
// must not block for long.
type Hooks struct {
	OnState  func(State)
	OnInput  func(fragment string)
	OnOutput func(fragment string)
	OnTurn   func(Turn)
	OnError  func(error)
}

// Session binds microphone capture to an outbound live stream and the inbound
// stream to scheduled playback plus transcript assembly.
type Session struct {
	ID string

	mode     Mode
	config   ai.LiveConfig
	settings Settings
	provider ai.LiveProvider
	devices  Devices
	hooks    Hooks
	logger   *logger.Logger

	mu        sync.Mutex
	state     State
	started   bool
	closed    bool // teardown has begun
	opened    bool // counted as an active session
	conn      ai.LiveConnection
	stream    MediaStream
	inputCtx  AudioContext
	outputCtx AudioContext
	node      ProcessingNode
	history   []Turn

	events       chan Event
	outbound     chan audio.Blob
	closing      chan struct{}
	done         chan struct{}
	teardownOnce sync.Once

	// owned by the event loop
	clock  audio.PlaybackClock
	input  strings.Builder
	output strings.Builder
}

// NewSession creates an idle session
func NewSession(provider ai.LiveProvider, devices Devices, mode Mode, config ai.LiveConfig, settings Settings, hooks Hooks, log *logger.Logger) *Session {
	settings = settings.withDefaults()
	id := uuid.NewString()
	return &Session{
		ID:       id,
		mode:     mode,
		config:   config,
		settings: settings,
		provider: provider,
		devices:  devices,
		hooks:    hooks,
		logger:   log.Named("live").With(logger.String("session", id), logger.String("mode", string(mode))),
		events:   make(chan Event, 16),
		outbound: make(chan audio.Blob, settings.QueueSize),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Mode returns the session mode
func (s *Session) Mode() Mode { return s.mode }

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns the finalized turns so far
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// Done is closed once teardown has released every resource
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start acquires the microphone and audio contexts and connects the transport.
// On failure everything acquired so far is released and the session ends.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	s.started = true
	s.state = StateStarting
	s.mu.Unlock()
	s.notifyState(StateStarting)

	stream, err := s.devices.GetUserMedia(ctx)
	if err != nil {
		if !errors.Is(err, ErrPermission) {
			err = fmt.Errorf("%w: %v", ErrPermission, err)
		}
		s.logger.Warn("Could not access microphone", logger.Error(err))
		s.teardown()
		return err
	}
	if !s.adopt(func() { s.stream = stream }) {
		stopTracks(stream)
		return ErrStopped
	}

	inputCtx, err := s.devices.NewContext(s.settings.CaptureRate)
	if err != nil {
		s.teardown()
		return fmt.Errorf("failed to open input audio context: %w", err)
	}
	if !s.adopt(func() { s.inputCtx = inputCtx }) {
		closeContext(inputCtx)
		return ErrStopped
	}

	if s.mode.PlaysAudio() {
		outputCtx, err := s.devices.NewContext(s.settings.PlaybackRate)
		if err != nil {
			s.teardown()
			return fmt.Errorf("failed to open output audio context: %w", err)
		}
		if !s.adopt(func() { s.outputCtx = outputCtx }) {
			closeContext(outputCtx)
			return ErrStopped
		}
	}

	conn, err := s.provider.Connect(ctx, s.config)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		s.logger.Error("Failed to connect live session", logger.Error(err))
		s.teardown()
		return err
	}
	if !s.adopt(func() { s.conn = conn }) {
		conn.Close()
		return ErrStopped
	}

	s.logger.Info("Live session connected", logger.String("model", s.config.Model))
	go s.loop()
	go s.receive(conn)
	return nil
}

// Stop begins teardown and returns immediately. Safe to call any number of
// times, and before Start has finished.
func (s *Session) Stop() {
	go s.teardown()
}

// adopt stores a freshly acquired resource unless teardown already ran
func (s *Session) adopt(store func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	store()
	return true
}

func (s *Session) post(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.closing:
		return false
	}
}

func (s *Session) receive(conn ai.LiveConnection) {
	if !s.post(Event{Kind: EventOpened}) {
		return
	}
	for {
		msg, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.post(Event{Kind: EventClosed})
			} else {
				s.post(Event{Kind: EventErrored, Err: err})
			}
			return
		}
		if !s.post(Event{Kind: EventMessage, Message: msg}) {
			return
		}
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.closing:
			return
		case ev := <-s.events:
			switch ev.Kind {
			case EventOpened:
				s.activate()
			case EventMessage:
				s.handleMessage(ev.Message)
			case EventErrored:
				err := fmt.Errorf("%w: %w", ErrTransport, ev.Err)
				s.logger.Error("Live session error", logger.Error(err))
				s.notifyError(err)
				s.teardown()
				return
			case EventClosed:
				s.logger.Info("Live session closed by server")
				s.teardown()
				return
			}
		}
	}
}

func (s *Session) activate() {
	s.mu.Lock()
	inputCtx, stream, conn := s.inputCtx, s.stream, s.conn
	s.mu.Unlock()
	if inputCtx == nil || conn == nil {
		return
	}

	node, err := inputCtx.NewProcessor(stream, s.settings.BufferSize)
	if err != nil {
		err = fmt.Errorf("failed to start audio capture: %w", err)
		s.logger.Error("Live session capture failed", logger.Error(err))
		s.notifyError(err)
		s.teardown()
		return
	}
	if !s.adopt(func() {
		s.node = node
		s.opened = true
		s.state = StateActive
	}) {
		node.Disconnect()
		return
	}

	metrics.LiveSessionOpened(string(s.mode))
	s.notifyState(StateActive)
	go s.capture(node)
	go s.send(conn)
}

// capture frames each buffer as 16-bit mono PCM and queues it without blocking
func (s *Session) capture(node ProcessingNode) {
	buffers := node.Buffers()
	for {
		select {
		case <-s.closing:
			return
		case buf, ok := <-buffers:
			if !ok {
				return
			}
			pcm := audio.FloatToPCM16(audio.Downmix(buf))
			blob := audio.PCMBlob(pcm, s.settings.CaptureRate)
			select {
			case s.outbound <- blob:
			default:
				metrics.IncLiveChunkDropped(string(s.mode), "backpressure")
				s.logger.Debug("Outbound queue full, dropping capture buffer")
			}
		}
	}
}

func (s *Session) send(conn ai.LiveConnection) {
	for {
		select {
		case <-s.closing:
			return
		case blob := <-s.outbound:
			if err := conn.SendAudio(blob.Data, blob.MIMEType); err != nil {
				metrics.IncLiveChunkDropped(string(s.mode), "send")
				s.logger.Debug("Failed to send capture buffer", logger.Error(err))
				continue
			}
			metrics.IncLiveChunkSent(string(s.mode))
		}
	}
}

func (s *Session) handleMessage(msg *ai.LiveMessage) {
	if msg == nil {
		return
	}

	s.mu.Lock()
	out := s.outputCtx
	s.mu.Unlock()

	if out != nil {
		for _, chunk := range msg.Audio {
			s.playChunk(out, chunk)
		}
	}
	if msg.Corrupt > 0 {
		s.dropChunks(msg.Corrupt, &audio.DecodeError{Err: errors.New("malformed base64 audio payload")})
	}
	if msg.Interrupted {
		// chunks already handed to the output context keep playing, so the
		// schedule continues from where they end
		s.logger.Debug("Model turn interrupted")
	}

	if msg.InputText != "" {
		s.input.WriteString(msg.InputText)
		if s.hooks.OnInput != nil {
			s.hooks.OnInput(msg.InputText)
		}
	}
	if msg.OutputText != "" {
		s.output.WriteString(msg.OutputText)
		if s.hooks.OnOutput != nil {
			s.hooks.OnOutput(msg.OutputText)
		}
	}
	if msg.TurnComplete {
		s.flushTurn()
	}
}

func (s *Session) playChunk(out AudioContext, chunk []byte) {
	buf, err := audio.DecodeAudioData(chunk, s.settings.PlaybackRate, 1)
	if err != nil {
		s.dropChunks(1, err)
		return
	}
	if buf.Frames() == 0 {
		return
	}
	start := s.clock.Schedule(out.CurrentTime(), buf.Duration())
	if err := out.Play(buf, start); err != nil {
		s.logger.Debug("Failed to schedule audio chunk", logger.Error(err))
	}
}

// dropChunks discards undecodable audio. The session stays up.
func (s *Session) dropChunks(n int, err error) {
	s.logger.Warn("Dropping undecodable audio chunk", logger.Int("count", n), logger.Error(err))
	for i := 0; i < n; i++ {
		metrics.IncLiveChunkDropped(string(s.mode), "decode")
	}
}

func (s *Session) flushTurn() {
	if s.input.Len() == 0 && s.output.Len() == 0 {
		return
	}
	turn := Turn{User: s.input.String(), Model: s.output.String()}
	s.input.Reset()
	s.output.Reset()

	s.mu.Lock()
	s.history = append(s.history, turn)
	s.mu.Unlock()

	metrics.IncLiveTurn(string(s.mode))
	if s.hooks.OnTurn != nil {
		s.hooks.OnTurn(turn)
	}
}

// teardown releases every acquired resource exactly once, whichever path got here first
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.state = StateClosing
		conn, stream, node := s.conn, s.stream, s.node
		inputCtx, outputCtx := s.inputCtx, s.outputCtx
		s.conn, s.stream, s.node, s.inputCtx, s.outputCtx = nil, nil, nil, nil, nil
		opened := s.opened
		s.mu.Unlock()

		s.notifyState(StateClosing)
		close(s.closing)

		if conn != nil {
			if err := conn.Close(); err != nil {
				s.logger.Debug("Error closing live transport", logger.Error(err))
			}
		}
		if stream != nil {
			stopTracks(stream)
		}
		if node != nil {
			node.Disconnect()
		}
		closeContext(inputCtx)
		closeContext(outputCtx)

		if opened {
			metrics.LiveSessionClosed(string(s.mode))
		}

		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.notifyState(StateIdle)
		s.logger.Info("Live session ended")
		close(s.done)
	})
}

func (s *Session) notifyState(state State) {
	if s.hooks.OnState != nil {
		s.hooks.OnState(state)
	}
}

func (s *Session) notifyError(err error) {
	if s.hooks.OnError != nil {
		s.hooks.OnError(err)
	}
}

func stopTracks(stream MediaStream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}

func closeContext(c AudioContext) {
	if c != nil && !c.Closed() {
		c.Close()
	}
}
