package live

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/audio"
)

type sentChunk struct {
	data     []byte
	mimeType string
}

type fakeConn struct {
	msgs      chan *ai.LiveMessage
	recvErr   chan error
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	closes int
	sent   []sentChunk
	sentCh chan sentChunk
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:    make(chan *ai.LiveMessage, 16),
		recvErr: make(chan error, 1),
		closed:  make(chan struct{}),
		sentCh:  make(chan sentChunk, 16),
	}
}

func (c *fakeConn) SendAudio(data []byte, mimeType string) error {
	chunk := sentChunk{data: append([]byte(nil), data...), mimeType: mimeType}
	c.mu.Lock()
	c.sent = append(c.sent, chunk)
	c.mu.Unlock()
	select {
	case c.sentCh <- chunk:
	default:
	}
	return nil
}

func (c *fakeConn) Receive() (*ai.LiveMessage, error) {
	select {
	case msg, ok := <-c.msgs:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case err := <-c.recvErr:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeProvider struct {
	conn *fakeConn
	err  error

	mu      sync.Mutex
	configs []ai.LiveConfig
}

func (p *fakeProvider) Connect(ctx context.Context, config ai.LiveConfig) (ai.LiveConnection, error) {
	p.mu.Lock()
	p.configs = append(p.configs, config)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.conn, nil
}

type fakeTrack struct {
	mu    sync.Mutex
	stops int
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
}

func (t *fakeTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeStream struct {
	tracks []*fakeTrack
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

type fakeNode struct {
	buffers chan audio.Buffer

	mu          sync.Mutex
	disconnects int
}

func (n *fakeNode) Buffers() <-chan audio.Buffer { return n.buffers }

func (n *fakeNode) Disconnect() {
	n.mu.Lock()
	n.disconnects++
	n.mu.Unlock()
}

func (n *fakeNode) disconnectCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnects
}

type played struct {
	at       float64
	duration float64
}

type fakeContext struct {
	rate int

	mu      sync.Mutex
	now     float64
	closes  int
	played  []played
	node    *fakeNode
	nodeErr error
}

func (c *fakeContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeContext) NewProcessor(stream MediaStream, bufferSize int) (ProcessingNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nodeErr != nil {
		return nil, c.nodeErr
	}
	c.node = &fakeNode{buffers: make(chan audio.Buffer, 4)}
	return c.node, nil
}

func (c *fakeContext) Play(buf *audio.PlayableBuffer, at float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.played = append(c.played, played{at: at, duration: buf.Duration()})
	return nil
}

func (c *fakeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes > 0
}

func (c *fakeContext) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeContext) processor() *fakeNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.node
}

type fakeDevices struct {
	mediaErr error
	gate     chan struct{} // when set, GetUserMedia waits on it

	mu       sync.Mutex
	stream   *fakeStream
	contexts []*fakeContext
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{stream: &fakeStream{tracks: []*fakeTrack{{}, {}}}}
}

func (d *fakeDevices) GetUserMedia(ctx context.Context) (MediaStream, error) {
	if d.gate != nil {
		<-d.gate
	}
	if d.mediaErr != nil {
		return nil, d.mediaErr
	}
	return d.stream, nil
}

func (d *fakeDevices) NewContext(sampleRate int) (AudioContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeContext{rate: sampleRate}
	d.contexts = append(d.contexts, c)
	return c, nil
}

func (d *fakeDevices) context(i int) *fakeContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.contexts) {
		return nil
	}
	return d.contexts[i]
}

func (d *fakeDevices) contextCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contexts)
}
