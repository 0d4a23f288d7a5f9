package live

import (
	"context"

	"github.com/yegors/co-studio/internal/audio"
)

// Devices gives a session access to the capture and playback side of the
// client. The browser bridge implements it over a WebSocket.
type Devices interface {
	// GetUserMedia acquires the microphone. Denial is reported as an error
	// wrapping ErrPermission.
	GetUserMedia(ctx context.Context) (MediaStream, error)

	// NewContext opens an audio context running at sampleRate
	NewContext(sampleRate int) (AudioContext, error)
}

// MediaStream is an acquired capture stream
type MediaStream interface {
	Tracks() []Track
}

// Track is one capture track of a MediaStream
type Track interface {
	Stop()
}

// AudioContext is a clocked audio graph used for capture processing or playback
type AudioContext interface {
	// CurrentTime is the context clock in seconds
	CurrentTime() float64

	// NewProcessor attaches a processing node delivering bufferSize frames per buffer
	NewProcessor(stream MediaStream, bufferSize int) (ProcessingNode, error)

	// Play schedules buf to start at the given context time
	Play(buf *audio.PlayableBuffer, at float64) error

	Close() error
	Closed() bool
}

// ProcessingNode delivers fixed-size capture buffers until disconnected
type ProcessingNode interface {
	Buffers() <-chan audio.Buffer
	Disconnect()
}
