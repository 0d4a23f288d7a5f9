package api

import (
	"encoding/binary"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/live"
	"github.com/yegors/co-studio/pkg/logger"
)

func dialLive(t *testing.T, env *testEnv, mode string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/live/" + mode + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, frameType string, match func(liveFrame) bool) liveFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f liveFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s frame: %v", frameType, err)
		}
		if f.Type == frameType && (match == nil || match(f)) {
			return f
		}
	}
}

func floatFrame(samples ...float32) []byte {
	data := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}

func TestLiveEndpointRejectsRequests(t *testing.T) {
	env := newTestEnv(t, "key")
	resp, _ := doJSON(t, env, http.MethodGet, "/api/live/karaoke/ws", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown mode = %d, want 400", resp.StatusCode)
	}

	env = newTestEnv(t, "")
	resp, data := doJSON(t, env, http.MethodGet, "/api/live/coach/ws", "")
	if resp.StatusCode != http.StatusPreconditionFailed || data["setup"] != setupHint {
		t.Errorf("no credential = %d %v, want 412 with setup", resp.StatusCode, data)
	}
}

func TestLiveTranscriptionBridge(t *testing.T) {
	env := newTestEnv(t, "key")
	upstream := newFakeLiveConn()
	env.gemini.conn = upstream

	conn := dialLive(t, env, "transcribe")
	readUntil(t, conn, frameRequestMedia, nil)
	if err := conn.WriteJSON(liveFrame{Type: frameMedia, Granted: true, Channels: 1}); err != nil {
		t.Fatalf("send media: %v", err)
	}
	readUntil(t, conn, frameState, func(f liveFrame) bool { return f.State == "active" })

	if err := conn.WriteMessage(websocket.BinaryMessage, floatFrame(0.5, -0.5)); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	select {
	case got := <-upstream.sent:
		if got.mimeType != "audio/pcm;rate=16000" {
			t.Errorf("mime type = %q", got.mimeType)
		}
		if len(got.data) != 4 {
			t.Errorf("got %d bytes of PCM, want 4", len(got.data))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("capture audio never reached the live connection")
	}

	upstream.msgs <- &ai.LiveMessage{InputText: "hello"}
	f := readUntil(t, conn, frameInput, nil)
	if f.Text != "hello" {
		t.Errorf("input frame text = %q", f.Text)
	}
	deadline := time.Now().Add(time.Second)
	for env.studio.Transcription.Text() != "hello" {
		if time.Now().After(deadline) {
			t.Fatalf("transcription = %q, want hello", env.studio.Transcription.Text())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := conn.WriteJSON(liveFrame{Type: frameStop}); err != nil {
		t.Fatalf("send stop: %v", err)
	}
	select {
	case <-upstream.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("live connection was not closed after stop")
	}
}

func TestLiveMicrophoneDenied(t *testing.T) {
	env := newTestEnv(t, "key")
	env.gemini.conn = newFakeLiveConn()

	conn := dialLive(t, env, "coach")
	readUntil(t, conn, frameRequestMedia, nil)
	if err := conn.WriteJSON(liveFrame{Type: frameMedia, Granted: false}); err != nil {
		t.Fatalf("send media: %v", err)
	}
	f := readUntil(t, conn, frameError, nil)
	if !strings.Contains(f.Error, "denied") {
		t.Errorf("error frame = %q", f.Error)
	}
}

func TestReplacedSessionCannotWriteTranscript(t *testing.T) {
	env := newTestEnv(t, "key")
	lh := env.live
	b := newBridge(nil, logger.NewNop())
	begin := func() { env.studio.Transcription.Begin() }

	old := lh.sessionHooks(live.ModeTranscribe, lh.owners.claim(live.ModeTranscribe, begin), b)
	old.OnInput("first take ")
	if got := env.studio.Transcription.Text(); got != "first take " {
		t.Fatalf("transcription = %q", got)
	}

	current := lh.sessionHooks(live.ModeTranscribe, lh.owners.claim(live.ModeTranscribe, begin), b)
	old.OnInput("late fragment ")
	current.OnInput("second take")

	if got := env.studio.Transcription.Text(); got != "second take" {
		t.Errorf("transcription = %q, want only the current session's text", got)
	}
}

func TestReplacedCoachSessionCannotRecordTurns(t *testing.T) {
	env := newTestEnv(t, "key")
	lh := env.live
	b := newBridge(nil, logger.NewNop())
	begin := func() { env.studio.Vocals.BeginCoaching() }

	old := lh.sessionHooks(live.ModeCoach, lh.owners.claim(live.ModeCoach, begin), b)
	current := lh.sessionHooks(live.ModeCoach, lh.owners.claim(live.ModeCoach, begin), b)

	old.OnTurn(live.Turn{User: "stale", Model: "stale"})
	current.OnTurn(live.Turn{User: "la la", Model: "nice pitch"})

	turns := env.studio.Vocals.CoachTranscript()
	if len(turns) != 1 || turns[0].User != "la la" {
		t.Errorf("coach transcript = %+v, want only the current turn", turns)
	}
}

func TestPanelOwnersClaim(t *testing.T) {
	o := &panelOwners{gens: make(map[live.Mode]uint64)}
	resets := 0
	first := o.claim(live.ModeCoach, func() { resets++ })
	other := o.claim(live.ModeTranscribe, func() { resets++ })
	second := o.claim(live.ModeCoach, func() { resets++ })

	if resets != 3 {
		t.Fatalf("reset ran %d times, want 3", resets)
	}
	tests := []struct {
		name string
		mode live.Mode
		gen  uint64
		want bool
	}{
		{"replaced owner", live.ModeCoach, first, false},
		{"current owner", live.ModeCoach, second, true},
		{"other mode", live.ModeTranscribe, other, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			if got := o.do(tt.mode, tt.gen, func() { ran = true }); got != tt.want || ran != tt.want {
				t.Errorf("do = %v (ran %v), want %v", got, ran, tt.want)
			}
		})
	}
}
