package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/studio"
	"github.com/yegors/co-studio/internal/websocket"
	"github.com/yegors/co-studio/pkg/logger"
)

// -- Songwriting --

// GetChat returns the conversation and the pending style preset
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"messages": h.studio.Songwriting.Messages(),
		"preset":   h.studio.Songwriting.Preset(),
	})
}

type chatRequest struct {
	Text     string             `json:"text"`
	Feedback string             `json:"feedback"`
	Options  studio.ChatOptions `json:"options"`
}

// SendChat sends a prompt to the songwriting chat
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.studio.Songwriting.Send(r.Context(), req.Text, req.Options)
	h.chatResponse(w, reply, err)
}

// ReviseChat regenerates the last reply from feedback
func (h *Handler) ReviseChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.studio.Songwriting.Revise(r.Context(), req.Feedback, req.Options)
	h.chatResponse(w, reply, err)
}

func (h *Handler) chatResponse(w http.ResponseWriter, reply *studio.Message, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.wsServer.Publish(websocket.MessageTypeProject, h.projectData())
	WriteJSON(w, http.StatusOK, map[string]any{
		"reply":    reply,
		"messages": h.studio.Songwriting.Messages(),
	})
}

// SetPreset selects the style preset applied to the next prompt
func (h *Handler) SetPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.studio.Songwriting.SetPreset(req.Name); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"preset": req.Name})
}

// Inspiration returns three song concepts
func (h *Handler) Inspiration(w http.ResponseWriter, r *http.Request) {
	text, err := h.studio.Songwriting.Inspiration(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"text": text})
}

// ResetChat clears the conversation
func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	h.studio.Songwriting.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// -- Wizard --

// Compose turns an idea into lyrics and art concepts
func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Idea string `json:"idea"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.studio.Wizard.Compose(r.Context(), req.Idea)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// WizardVocals sings the composed lyrics
func (h *Handler) WizardVocals(w http.ResponseWriter, r *http.Request) {
	var req studio.VocalRequest
	if !h.decode(w, r, &req) {
		return
	}
	wav, err := h.studio.Wizard.VocalTrack(r.Context(), req.Voice, req.Style)
	h.audioResponse(w, wav, err)
}

// -- Vocals --

// GenerateVocals renders a vocal track for the given lyrics
func (h *Handler) GenerateVocals(w http.ResponseWriter, r *http.Request) {
	var req studio.VocalRequest
	if !h.decode(w, r, &req) {
		return
	}
	wav, err := h.studio.Vocals.Generate(r.Context(), req)
	h.audioResponse(w, wav, err)
}

// ReviseVocals regenerates the track from feedback
func (h *Handler) ReviseVocals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		studio.VocalRequest
		Feedback string `json:"feedback"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	wav, err := h.studio.Vocals.Revise(r.Context(), req.VocalRequest, req.Feedback)
	h.audioResponse(w, wav, err)
}

// PreviewVoice speaks the preview phrase in a voice
func (h *Handler) PreviewVoice(w http.ResponseWriter, r *http.Request) {
	wav, err := h.studio.Vocals.Preview(r.Context(), chi.URLParam(r, "voice"))
	h.audioResponse(w, wav, err)
}

// CoachTranscript returns the turns of the current or last coach session
func (h *Handler) CoachTranscript(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"turns": h.studio.Vocals.CoachTranscript()})
}

func (h *Handler) audioResponse(w http.ResponseWriter, wav []byte, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeBytes(w, "audio/wav", wav)
}

// -- Art --

// GenerateArt creates cover art
func (h *Handler) GenerateArt(w http.ResponseWriter, r *http.Request) {
	var req studio.ImageOptions
	if !h.decode(w, r, &req) {
		return
	}
	img, err := h.studio.Art.Generate(r.Context(), req)
	h.imageResponse(w, img, err)
}

// EditArt applies an instruction to an uploaded, picked or the last generated image
func (h *Handler) EditArt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instruction string        `json:"instruction"`
		Image       *mediaPayload `json:"image,omitempty"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	source, err := h.resolveMedia(r, req.Image, "image/*")
	if err != nil {
		h.writeError(w, err)
		return
	}
	img, err := h.studio.Art.Edit(r.Context(), req.Instruction, source)
	h.imageResponse(w, img, err)
}

// ArtConcepts suggests cover art ideas for the lyrics
func (h *Handler) ArtConcepts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lyrics string `json:"lyrics"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	text, err := h.studio.Art.Concepts(r.Context(), req.Lyrics)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"text": text})
}

// CurrentArt serves the image on display
func (h *Handler) CurrentArt(w http.ResponseWriter, r *http.Request) {
	img := h.studio.Art.Current()
	if img == nil {
		h.writeError(w, studio.ErrNoArtifact)
		return
	}
	writeBytes(w, img.MIMEType, img.Data)
}

func (h *Handler) imageResponse(w http.ResponseWriter, img *ai.Media, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, mediaPayload{Data: img.Data, MIMEType: img.MIMEType})
}

// -- Video --

// GenerateVideo schedules a video job
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		studio.VideoOptions
		StartImage *mediaPayload `json:"start_image,omitempty"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	img, err := h.resolveMedia(r, req.StartImage, "image/*")
	if err != nil {
		h.writeError(w, err)
		return
	}
	req.VideoOptions.StartImage = img

	status, err := h.studio.Video.Generate(r.Context(), req.VideoOptions)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("Video job scheduled", logger.String("run_id", status.RunID))
	WriteJSON(w, http.StatusAccepted, status)
}

// ExtendVideo continues the last generated video
func (h *Handler) ExtendVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	status, err := h.studio.Video.Extend(r.Context(), req.Prompt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, status)
}

// CancelVideo stops polling the current job
func (h *Handler) CancelVideo(w http.ResponseWriter, r *http.Request) {
	h.studio.Video.Cancel()
	WriteJSON(w, http.StatusOK, h.studio.Video.Status())
}

// VideoStatus returns the video panel state
func (h *Handler) VideoStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.studio.Video.Status())
}

// VideoFile streams the finished video for the player
func (h *Handler) VideoFile(w http.ResponseWriter, r *http.Request) {
	d, err := h.studio.Project.Download(studio.ArtifactVideo)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeBytes(w, d.MIMEType, d.Data)
}

// Storyboard builds a video prompt from the project lyrics
func (h *Handler) Storyboard(w http.ResponseWriter, r *http.Request) {
	text, err := h.studio.Video.Storyboard(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"text": text})
}

// AnalyzeVideo answers a question about frames captured by the browser
func (h *Handler) AnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string         `json:"prompt"`
		Frames []mediaPayload `json:"frames"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	frames := make([]ai.Media, 0, len(req.Frames))
	for i := range req.Frames {
		m, err := h.resolveMedia(r, &req.Frames[i], "image/*")
		if err != nil {
			h.writeError(w, err)
			return
		}
		if m != nil {
			if m.MIMEType == "" {
				m.MIMEType = "image/jpeg"
			}
			frames = append(frames, *m)
		}
	}
	text, err := h.studio.Video.Analyze(r.Context(), req.Prompt, frames)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"text": text})
}

// -- Monetization --

// MonetizationPlan writes a promotion plan
func (h *Handler) MonetizationPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string        `json:"description"`
		Assets      studio.Assets `json:"assets"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.studio.Monetization.Plan(r.Context(), req.Description, req.Assets)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"text": plan})
}

// -- Transcription --

// GetTranscription returns the text of the transcription panel
func (h *Handler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"text": h.studio.Transcription.Text()})
}
