package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/audio"
	"github.com/yegors/co-studio/internal/credential"
	"github.com/yegors/co-studio/pkg/logger"
)

// bidiConnection speaks the BidiGenerateContent protocol directly over a websocket.
// It is used when the SDK transport is unavailable, e.g. behind a proxy that only
// forwards the raw endpoint.
type bidiConnection struct {
	conn   *websocket.Conn
	mu     sync.Mutex // guards writes
	logger *logger.Logger
}

type bidiBlob struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type bidiPart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *bidiBlob `json:"inlineData,omitempty"`
}

type bidiServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		ModelTurn *struct {
			Parts []bidiPart `json:"parts"`
		} `json:"modelTurn,omitempty"`
		TurnComplete       bool `json:"turnComplete,omitempty"`
		Interrupted        bool `json:"interrupted,omitempty"`
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription,omitempty"`
		OutputTranscription *struct {
			Text string `json:"text"`
		} `json:"outputTranscription,omitempty"`
	} `json:"serverContent,omitempty"`
}

// liveURL builds wss://host/path, honouring a base URL override
func (c *Client) liveURL() (string, error) {
	u := url.URL{
		Scheme: "wss",
		Host:   DefaultHost,
		Path:   DefaultPath,
	}
	if c.opts.BaseURL != "" {
		base, err := url.Parse(c.opts.BaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base url: %w", err)
		}
		u.Host = base.Host
		switch base.Scheme {
		case "http", "ws":
			u.Scheme = "ws"
		}
	}
	return u.String(), nil
}

func setupMessage(config ai.LiveConfig) map[string]any {
	model := config.Model
	if !strings.Contains(model, "/") {
		model = "models/" + model
	}

	generation := map[string]any{}
	if config.AudioOutput {
		generation["response_modalities"] = []string{"AUDIO"}
		if config.Voice != "" {
			generation["speech_config"] = map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": config.Voice,
					},
				},
			}
		}
	}

	setup := map[string]any{
		"model":             model,
		"generation_config": generation,
	}
	if config.SystemInstruction != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{{"text": config.SystemInstruction}},
		}
	}
	if config.InputTranscription {
		setup["input_audio_transcription"] = map[string]any{}
	}
	if config.OutputTranscription {
		setup["output_audio_transcription"] = map[string]any{}
	}
	return map[string]any{"setup": setup}
}

func (c *Client) connectRaw(ctx context.Context, config ai.LiveConfig) (ai.LiveConnection, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, credential.ErrNotConfigured
	}
	wsURL, err := c.liveURL()
	if err != nil {
		return nil, err
	}

	c.logger.Info("Connecting to Gemini Live API over raw websocket", logger.String("model", config.Model))

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, http.Header{"x-goog-api-key": {key}})
	if err != nil {
		if resp != nil {
			c.logger.Error("Gemini WebSocket handshake failed",
				logger.Int("status_code", resp.StatusCode),
				logger.String("status", resp.Status))
		}
		return nil, fmt.Errorf("failed to dial Gemini: %w", err)
	}

	if err := conn.WriteJSON(setupMessage(config)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send setup to Gemini: %w", err)
	}

	return &bidiConnection{conn: conn, logger: c.logger}, nil
}

func (b *bidiConnection) SendAudio(data []byte, mimeType string) error {
	msg := map[string]any{
		"realtime_input": map[string]any{
			"audio": bidiBlob{MIMEType: mimeType, Data: audio.Encode(data)},
		},
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.WriteJSON(msg)
}

func (b *bidiConnection) Receive() (*ai.LiveMessage, error) {
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return nil, io.EOF
			}
			return nil, err
		}

		var msg bidiServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.logger.Warn("Ignoring unparseable server message", logger.Error(err))
			continue
		}
		if msg.ServerContent == nil {
			continue
		}

		return convertBidiContent(&msg), nil
	}
}

// convertBidiContent decodes inline audio. Chunks that fail to decode are
// counted in Corrupt instead of ending the stream.
func convertBidiContent(msg *bidiServerMessage) *ai.LiveMessage {
	sc := msg.ServerContent
	out := &ai.LiveMessage{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil {
				continue
			}
			data, err := audio.Decode(part.InlineData.Data)
			if err != nil {
				out.Corrupt++
				continue
			}
			out.Audio = append(out.Audio, data)
			out.AudioMIME = part.InlineData.MIMEType
		}
	}
	if sc.InputTranscription != nil {
		out.InputText = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		out.OutputText = sc.OutputTranscription.Text
	}
	return out
}

func (b *bidiConnection) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}
