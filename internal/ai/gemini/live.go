package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
	"google.golang.org/genai"
)

// sdkConnection adapts a genai live session to ai.LiveConnection
type sdkConnection struct {
	session *genai.Session
	logger  *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func (c *Client) connectSDK(ctx context.Context, config ai.LiveConfig) (ai.LiveConnection, error) {
	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	lcfg := &genai.LiveConnectConfig{}
	if config.AudioOutput {
		lcfg.ResponseModalities = []genai.Modality{genai.ModalityAudio}
		lcfg.SpeechConfig = speechConfig(config.Voice)
	}
	if config.SystemInstruction != "" {
		lcfg.SystemInstruction = genai.NewContentFromText(config.SystemInstruction, genai.RoleUser)
	}
	if config.InputTranscription {
		lcfg.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if config.OutputTranscription {
		lcfg.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	c.logger.Info("Connecting to Gemini Live API", logger.String("model", config.Model))

	session, err := sdk.Live.Connect(ctx, config.Model, lcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect live session: %w", err)
	}
	return &sdkConnection{session: session, logger: c.logger}, nil
}

func (s *sdkConnection) SendAudio(data []byte, mimeType string) error {
	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (s *sdkConnection) Receive() (*ai.LiveMessage, error) {
	for {
		msg, err := s.session.Receive()
		if err != nil {
			if isNormalClose(err) {
				return nil, io.EOF
			}
			return nil, err
		}
		if out := convertServerMessage(msg); out != nil {
			return out, nil
		}
		// setup acknowledgements and tool traffic carry nothing for us
	}
}

func (s *sdkConnection) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.session.Close()
	})
	return s.closeErr
}

func convertServerMessage(msg *genai.LiveServerMessage) *ai.LiveMessage {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent
	out := &ai.LiveMessage{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out.Audio = append(out.Audio, part.InlineData.Data)
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

func isNormalClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
