package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// CaptureSampleRate is the microphone rate sent upstream
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of audio returned by the live model and TTS
	PlaybackSampleRate = 24000
	// CaptureBufferSize is the number of frames per capture buffer
	CaptureBufferSize = 4096
	// WAVHeaderSize is the size of the canonical PCM RIFF header
	WAVHeaderSize = 44
)

// ErrPartialFrame is returned when PCM input does not hold a whole number of frames
var ErrPartialFrame = errors.New("pcm data ends with a partial frame")

// DecodeError reports a malformed encoded payload
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed audio payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode turns raw bytes into transport-safe text
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the inverse of Encode
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return b, nil
}

// PCMToWAV wraps little-endian PCM samples in a minimal RIFF/WAVE container.
func PCMToWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, WAVHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[WAVHeaderSize:], pcm)
	return out
}

// SpeechWAV frames mono 16-bit speech returned by the TTS model
func SpeechWAV(pcm []byte) []byte {
	return PCMToWAV(pcm, PlaybackSampleRate, 1, 16)
}

// PlayableBuffer holds normalized samples ready for scheduled playback
type PlayableBuffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames per channel
func (b *PlayableBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length in seconds
func (b *PlayableBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// DecodeAudioData converts 16-bit little-endian PCM into a normalized float buffer.
// The buffer keeps the declared sample rate; nothing is resampled.
func DecodeAudioData(pcm []byte, sampleRate, channels int) (*PlayableBuffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	frameSize := 2 * channels
	if len(pcm)%frameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d channel(s)", ErrPartialFrame, len(pcm), channels)
	}

	frames := len(pcm) / frameSize
	buf := &PlayableBuffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			buf.Channels[ch][i] = float32(s) / 32768.0
		}
	}
	return buf, nil
}

// Buffer is one capture block, one slice per input channel
type Buffer struct {
	Channels [][]float32
}

// Downmix averages all channels into one
func Downmix(b Buffer) []float32 {
	switch len(b.Channels) {
	case 0:
		return nil
	case 1:
		return b.Channels[0]
	}
	n := len(b.Channels[0])
	for _, ch := range b.Channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	out := make([]float32, n)
	scale := 1 / float32(len(b.Channels))
	for _, ch := range b.Channels {
		for i := 0; i < n; i++ {
			out[i] += ch[i] * scale
		}
	}
	return out
}

// FloatToPCM16 converts [-1, 1] samples to 16-bit little-endian PCM
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, x := range samples {
		v := math.Round(float64(x) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// Blob is one framed outbound chunk
type Blob struct {
	Data     []byte
	MIMEType string
}

// PCMBlob frames raw 16-bit PCM captured at rate
func PCMBlob(pcm []byte, rate int) Blob {
	return Blob{Data: pcm, MIMEType: fmt.Sprintf("audio/pcm;rate=%d", rate)}
}
