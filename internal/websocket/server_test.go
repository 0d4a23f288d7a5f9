package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/co-studio/pkg/logger"
)

type echoHandler struct{}

func (echoHandler) HandleMessage(client *Client, messageType string, data map[string]any) error {
	if messageType == MessageTypeStatusRequest {
		client.SendMessage(&Message{Type: MessageTypeVideoProgress, Data: map[string]any{"message": "idle"}})
	}
	return nil
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(logger.NewNop())
	s.SetMessageHandler(echoHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func waitClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", s.ClientCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWelcomeAndBroadcast(t *testing.T) {
	s, url := startServer(t)
	a := dial(t, url)
	b := dial(t, url)

	wa, wb := readMessage(t, a), readMessage(t, b)
	if wa.Type != MessageTypeWelcome || wa.Data["client_id"] == "" || wa.Data["client_id"] == wb.Data["client_id"] {
		t.Fatalf("unexpected welcomes %+v %+v", wa, wb)
	}
	waitClients(t, s, 2)

	s.Publish(MessageTypeVideoProgress, map[string]any{"message": "Checking video status..."})

	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		if m.Type != MessageTypeVideoProgress || m.Data["message"] != "Checking video status..." {
			t.Errorf("unexpected message %+v", m)
		}
	}
}

func TestIncomingMessagesReachHandler(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	readMessage(t, conn)

	if err := conn.WriteJSON(Message{Type: MessageTypeStatusRequest}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := readMessage(t, conn); m.Type != MessageTypeVideoProgress || m.Data["message"] != "idle" {
		t.Errorf("unexpected reply %+v", m)
	}
}

func TestClosedClientIsUnregistered(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, url)
	readMessage(t, conn)
	waitClients(t, s, 1)

	conn.Close()
	waitClients(t, s, 0)
}

func TestBroadcastAfterStop(t *testing.T) {
	s := NewServer(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for range 100 {
			s.Publish(MessageTypeProject, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked after the server stopped")
	}
}
