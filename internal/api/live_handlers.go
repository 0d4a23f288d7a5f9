package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/co-studio/internal/audio"
	"github.com/yegors/co-studio/internal/credential"
	"github.com/yegors/co-studio/internal/live"
	"github.com/yegors/co-studio/internal/studio"
	hub "github.com/yegors/co-studio/internal/websocket"
	"github.com/yegors/co-studio/pkg/logger"
)

// Frames exchanged with the browser over /api/live/{mode}/ws. Capture audio
// arrives as binary frames of interleaved float32 little-endian samples;
// everything else is JSON.
const (
	frameRequestMedia = "request_media" // server asks the browser for the microphone
	frameMedia        = "media"         // browser answers: granted, channels
	frameStop         = "stop"          // browser ends the session
	frameTrackStopped = "track_stopped" // server released the microphone
	frameState        = "state"
	frameAudio        = "audio"
	frameInput        = "input"
	frameOutput       = "output"
	frameTurn         = "turn"
	frameError        = "error"
)

var errBridgeClosed = errors.New("live bridge closed")

// liveFrame is a JSON frame in either direction
type liveFrame struct {
	Type       string     `json:"type"`
	State      string     `json:"state,omitempty"`
	Granted    bool       `json:"granted,omitempty"`
	Channels   int        `json:"channels,omitempty"`
	Text       string     `json:"text,omitempty"`
	Turn       *live.Turn `json:"turn,omitempty"`
	Start      float64    `json:"start,omitempty"`
	SampleRate int        `json:"sample_rate,omitempty"`
	Data       string     `json:"data,omitempty"` // base64 16-bit PCM
	Error      string     `json:"error,omitempty"`
}

// LiveHandler bridges browser audio to live sessions
type LiveHandler struct {
	controller *live.Controller
	studio     *studio.Studio
	creds      credential.Capabilities
	wsServer   *hub.Server
	owners     *panelOwners
	upgrader   websocket.Upgrader
	logger     *logger.Logger
}

// NewLiveHandler creates the live session handlers
func NewLiveHandler(controller *live.Controller, st *studio.Studio, creds credential.Capabilities, wsServer *hub.Server, log *logger.Logger) *LiveHandler {
	return &LiveHandler{
		controller: controller,
		studio:     st,
		creds:      creds,
		wsServer:   wsServer,
		owners:     &panelOwners{gens: make(map[live.Mode]uint64)},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.Named("live-handler"),
	}
}

// StopSession ends the live session of a mode
func (h *LiveHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	mode, err := live.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	h.controller.Stop(string(mode))
	w.WriteHeader(http.StatusNoContent)
}

// WebSocketHandler runs one live session for the connected browser. A new
// connection for the same mode replaces the running session.
func (h *LiveHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	mode, err := live.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if !h.creds.HasCredential() {
		WriteJSON(w, http.StatusPreconditionFailed, map[string]any{
			"error": credential.ErrNotConfigured.Error(),
			"setup": setupHint,
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade live connection", logger.Error(err))
		return
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(context.WithoutCancel(r.Context()))
	b := newBridge(conn, h.logger.With(logger.String("mode", string(mode))))

	g.Go(func() error { return b.readLoop(ctx) })
	g.Go(func() error { return b.writeLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		b.close()
		return nil
	})
	g.Go(func() error { return h.runSession(ctx, mode, b) })

	if err := g.Wait(); err != nil && !errors.Is(err, errBridgeClosed) {
		h.logger.Warn("Live bridge ended with error", logger.Error(err))
	}
}

func (h *LiveHandler) runSession(ctx context.Context, mode live.Mode, b *bridge) error {
	gen := h.owners.claim(mode, func() {
		switch mode {
		case live.ModeCoach:
			h.studio.Vocals.BeginCoaching()
		case live.ModeTranscribe:
			h.studio.Transcription.Begin()
		}
	})
	hooks := h.sessionHooks(mode, gen, b)

	session, err := h.controller.Start(ctx, string(mode), mode, b, hooks)
	if err != nil {
		b.enqueue(liveFrame{Type: frameError, Error: err.Error()})
		b.flush()
		return fmt.Errorf("%w: %w", errBridgeClosed, err)
	}

	select {
	case <-session.Done():
		b.flush()
		return errBridgeClosed
	case <-ctx.Done():
		session.Stop()
		<-session.Done()
		return nil
	}
}

// sessionHooks forwards session events to the browser. Transcript updates
// reach the panel only while gen still owns the mode.
func (h *LiveHandler) sessionHooks(mode live.Mode, gen uint64, b *bridge) live.Hooks {
	return live.Hooks{
		OnState: func(s live.State) {
			b.enqueue(liveFrame{Type: frameState, State: s.String()})
		},
		OnInput: func(text string) {
			b.enqueue(liveFrame{Type: frameInput, Text: text})
			if mode != live.ModeTranscribe {
				return
			}
			if h.owners.do(mode, gen, func() { h.studio.Transcription.Append(text) }) {
				h.wsServer.Publish(hub.MessageTypeTranscription, map[string]any{"text": text})
			}
		},
		OnOutput: func(text string) {
			b.enqueue(liveFrame{Type: frameOutput, Text: text})
		},
		OnTurn: func(turn live.Turn) {
			b.enqueue(liveFrame{Type: frameTurn, Turn: &turn})
			if mode != live.ModeCoach {
				return
			}
			if h.owners.do(mode, gen, func() { h.studio.Vocals.RecordTurn(turn) }) {
				h.wsServer.Publish(hub.MessageTypeCoachTurn, map[string]any{"user": turn.User, "model": turn.Model})
			}
		},
		OnError: func(err error) {
			b.enqueue(liveFrame{Type: frameError, Error: err.Error()})
		},
	}
}

// panelOwners records which connection owns each mode's panel transcript.
// A replaced session may still deliver a queued turn while it tears down.
type panelOwners struct {
	mu   sync.Mutex
	gens map[live.Mode]uint64
}

// claim hands the mode to a new owner and runs reset before any older owner can write again
func (o *panelOwners) claim(mode live.Mode, reset func()) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gens[mode]++
	reset()
	return o.gens[mode]
}

// do runs fn if gen still owns the mode and reports whether it ran
func (o *panelOwners) do(mode live.Mode, gen uint64, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gens[mode] != gen {
		return false
	}
	fn()
	return true
}

// bridge implements live.Devices over the browser WebSocket
type bridge struct {
	conn   *websocket.Conn
	out    chan liveFrame
	media  chan liveFrame
	done   chan struct{}
	logger *logger.Logger

	closeOnce sync.Once
	pending   atomic.Int32 // frames queued or being written
	mu        sync.Mutex
	channels  int
	node      *bridgeNode
}

func newBridge(conn *websocket.Conn, log *logger.Logger) *bridge {
	return &bridge{
		conn:     conn,
		out:      make(chan liveFrame, 64),
		media:    make(chan liveFrame, 1),
		done:     make(chan struct{}),
		logger:   log,
		channels: 1,
	}
}

func (b *bridge) close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.conn.Close()
	})
}

// enqueue queues a frame for the writer. Frames are dropped once the bridge is closed.
func (b *bridge) enqueue(f liveFrame) {
	b.pending.Add(1)
	select {
	case b.out <- f:
	case <-b.done:
		b.pending.Add(-1)
	}
}

// flush waits briefly for queued frames to reach the browser
func (b *bridge) flush() {
	deadline := time.After(time.Second)
	for b.pending.Load() > 0 {
		select {
		case <-deadline:
			return
		case <-b.done:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (b *bridge) writeLoop(ctx context.Context) error {
	for {
		select {
		case f := <-b.out:
			err := b.conn.WriteJSON(f)
			b.pending.Add(-1)
			if err != nil {
				return fmt.Errorf("%w: %w", errBridgeClosed, err)
			}
		case <-ctx.Done():
			b.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return nil
		}
	}
}

func (b *bridge) readLoop(ctx context.Context) error {
	for {
		kind, data, err := b.conn.ReadMessage()
		if err != nil {
			return errBridgeClosed
		}

		if kind == websocket.BinaryMessage {
			b.deliver(data)
			continue
		}

		var f liveFrame
		if err := json.Unmarshal(data, &f); err != nil {
			b.logger.Warn("Ignoring malformed live frame", logger.Error(err))
			continue
		}
		switch f.Type {
		case frameMedia:
			select {
			case b.media <- f:
			default:
			}
		case frameStop:
			return errBridgeClosed
		default:
			b.logger.Debug("Ignoring live frame", logger.String("type", f.Type))
		}
	}
}

// deliver splits an interleaved float32 frame into channels for the capture node
func (b *bridge) deliver(data []byte) {
	b.mu.Lock()
	node, channels := b.node, b.channels
	b.mu.Unlock()
	if node == nil {
		return
	}

	samples := len(data) / 4
	frames := samples / channels
	if frames == 0 {
		return
	}
	buf := audio.Buffer{Channels: make([][]float32, channels)}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames*channels; i++ {
		buf.Channels[i%channels][i/channels] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	node.push(buf)
}

// GetUserMedia asks the browser for the microphone and waits for the answer
func (b *bridge) GetUserMedia(ctx context.Context) (live.MediaStream, error) {
	b.enqueue(liveFrame{Type: frameRequestMedia})
	select {
	case f := <-b.media:
		if !f.Granted {
			return nil, fmt.Errorf("%w: microphone access denied by the browser", live.ErrPermission)
		}
		b.mu.Lock()
		if f.Channels > 0 {
			b.channels = f.Channels
		}
		b.mu.Unlock()
		return &bridgeStream{bridge: b}, nil
	case <-b.done:
		return nil, fmt.Errorf("%w: browser disconnected", live.ErrPermission)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewContext opens a context whose clock starts now
func (b *bridge) NewContext(sampleRate int) (live.AudioContext, error) {
	return &bridgeContext{bridge: b, rate: sampleRate, origin: time.Now()}, nil
}

type bridgeStream struct {
	bridge *bridge
	once   sync.Once
}

func (s *bridgeStream) Tracks() []live.Track { return []live.Track{s} }

func (s *bridgeStream) Stop() {
	s.once.Do(func() {
		s.bridge.pending.Add(1)
		select {
		case s.bridge.out <- liveFrame{Type: frameTrackStopped}:
		default:
			s.bridge.pending.Add(-1)
		}
	})
}

type bridgeContext struct {
	bridge *bridge
	rate   int
	origin time.Time

	mu     sync.Mutex
	closed bool
}

func (c *bridgeContext) CurrentTime() float64 {
	return time.Since(c.origin).Seconds()
}

func (c *bridgeContext) NewProcessor(stream live.MediaStream, bufferSize int) (live.ProcessingNode, error) {
	node := &bridgeNode{bridge: c.bridge, buffers: make(chan audio.Buffer, 8)}
	c.bridge.mu.Lock()
	c.bridge.node = node
	c.bridge.mu.Unlock()
	return node, nil
}

// Play sends the buffer as mono PCM with its start time on this context's clock
func (c *bridgeContext) Play(buf *audio.PlayableBuffer, at float64) error {
	if c.Closed() {
		return errors.New("audio context closed")
	}
	pcm := audio.FloatToPCM16(audio.Downmix(audio.Buffer{Channels: buf.Channels}))
	c.bridge.enqueue(liveFrame{
		Type:       frameAudio,
		Start:      at,
		SampleRate: buf.SampleRate,
		Data:       audio.Encode(pcm),
	})
	return nil
}

func (c *bridgeContext) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *bridgeContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type bridgeNode struct {
	bridge  *bridge
	buffers chan audio.Buffer

	mu           sync.Mutex
	disconnected bool
}

func (n *bridgeNode) Buffers() <-chan audio.Buffer { return n.buffers }

// push hands a capture buffer to the session, dropping it when the session lags
func (n *bridgeNode) push(buf audio.Buffer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disconnected {
		return
	}
	select {
	case n.buffers <- buf:
	default:
		n.bridge.logger.Debug("Capture buffer dropped")
	}
}

func (n *bridgeNode) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disconnected {
		return
	}
	n.disconnected = true
	close(n.buffers)

	n.bridge.mu.Lock()
	if n.bridge.node == n {
		n.bridge.node = nil
	}
	n.bridge.mu.Unlock()
}
