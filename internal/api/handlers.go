package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/internal/config"
	"github.com/yegors/co-studio/internal/credential"
	"github.com/yegors/co-studio/internal/jobs"
	"github.com/yegors/co-studio/internal/studio"
	"github.com/yegors/co-studio/internal/websocket"
	"github.com/yegors/co-studio/pkg/logger"
)

// setupHint is shown wherever a feature needs the missing API key
const setupHint = "Set GEMINI_API_KEY in the environment or the .env file, then open the credential picker."

// CredentialStore is the credential capability plus direct key entry
type CredentialStore interface {
	credential.Capabilities
	SetKey(key string) error
}

// Handler contains the API handlers
type Handler struct {
	studio   *studio.Studio
	creds    CredentialStore
	wsServer *websocket.Server
	config   *config.Config
	version  string
	started  time.Time
	logger   *logger.Logger
}

// NewHandler creates a new API handler. Video progress is broadcast to the
// WebSocket hub, which also answers status requests through the handler.
func NewHandler(st *studio.Studio, creds CredentialStore, wsServer *websocket.Server, cfg *config.Config, version string, logger *logger.Logger) *Handler {
	h := &Handler{
		studio:   st,
		creds:    creds,
		wsServer: wsServer,
		config:   cfg,
		version:  version,
		started:  time.Now(),
		logger:   logger.Named("api-handler"),
	}
	st.Video.OnProgress(func(s studio.VideoStatus) {
		wsServer.Publish(websocket.MessageTypeVideoProgress, videoStatusData(s))
	})
	wsServer.SetMessageHandler(h)
	return h
}

// HandleMessage answers requests arriving over the hub connection
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeStatusRequest:
		client.SendMessage(&websocket.Message{Type: websocket.MessageTypeVideoProgress, Data: videoStatusData(h.studio.Video.Status())})
		client.SendMessage(&websocket.Message{Type: websocket.MessageTypeProject, Data: h.projectData()})
		return nil
	default:
		return fmt.Errorf("unsupported message type: %s", messageType)
	}
}

// HandleWebSocket handles hub connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":       "ok",
		"version":      h.version,
		"started":      humanize.Time(h.started),
		"credential":   h.creds.HasCredential(),
		"ws_clients":   h.wsServer.ClientCount(),
		"video_active": h.studio.Video.Status().Running || h.studio.Video.Status().Extending,
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]any{
		"gemini": map[string]any{
			"fast_model":   h.config.Gemini.FastModel,
			"pro_model":    h.config.Gemini.ProModel,
			"speech_model": h.config.Gemini.SpeechModel,
			"image_model":  h.config.Gemini.ImageModel,
			"video_model":  h.config.Gemini.VideoModel,
			"live_model":   h.config.Gemini.LiveModel,
		},
		"video": map[string]any{
			"poll_interval_seconds": h.config.Video.PollIntervalSecs,
			"max_polls":             h.config.Video.MaxPolls,
			"resolution":            h.config.Video.Resolution,
			"max_analysis_frames":   h.config.Video.MaxAnalysisFrames,
		},
		"live": map[string]any{
			"capture_sample_rate":  h.config.Live.CaptureSampleRate,
			"playback_sample_rate": h.config.Live.PlaybackSampleRate,
			"buffer_size":          h.config.Live.BufferSize,
		},
		"server": map[string]any{
			"max_upload_mb": h.config.Server.MaxUploadMB,
		},
		"credential": h.creds.HasCredential(),
	}
	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetOptions returns the option lists rendered by the panels
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, studio.Options())
}

// GetProject returns the title, shared lyrics and available downloads
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.projectData())
}

// UpdateProject renames the project
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.studio.Project.SetTitle(req.Title); err != nil {
		h.writeError(w, err)
		return
	}
	data := h.projectData()
	h.wsServer.Publish(websocket.MessageTypeProject, data)
	WriteJSON(w, http.StatusOK, data)
}

// Download serves the latest artifact of a kind as an attachment
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	kind, err := studio.ParseArtifactKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	d, err := h.studio.Project.Download(kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Debug("Serving download",
		logger.String("file", d.Filename),
		logger.String("size", humanize.Bytes(uint64(len(d.Data)))))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	writeBytes(w, d.MIMEType, d.Data)
}

// GetCredential reports whether the API key is configured
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, credentialData(h.creds.HasCredential()))
}

// SetCredential stores a key entered by the user
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.creds.SetKey(req.Key); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, credentialData(true))
}

// OpenCredentialPicker re-reads the environment for a newly provided key
func (h *Handler) OpenCredentialPicker(w http.ResponseWriter, r *http.Request) {
	if err := h.creds.OpenCredentialPicker(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, credentialData(true))
}

// PickFile serves a file from the media library, e.g. GET /api/files/cover.png?accept=image/*
func (h *Handler) PickFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.creds.PickFile(r.Context(), credential.PickOptions{
		Name:   chi.URLParam(r, "name"),
		Accept: r.URL.Query()["accept"],
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeBytes(w, f.MIMEType, f.Data)
}

// RequireCredential answers 412 with a setup hint while no API key is set
func (h *Handler) RequireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.creds.HasCredential() {
			h.writeError(w, credential.ErrNotConfigured)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) projectData() map[string]any {
	p := h.studio.Project
	available := make(map[string]bool)
	for _, kind := range []studio.ArtifactKind{
		studio.ArtifactLyrics, studio.ArtifactVocals, studio.ArtifactTranscript,
		studio.ArtifactArtwork, studio.ArtifactVideo, studio.ArtifactPlan,
	} {
		available[string(kind)] = p.Has(kind)
	}
	return map[string]any{
		"title":     p.Title(),
		"lyrics":    p.Lyrics(),
		"artifacts": available,
	}
}

func credentialData(configured bool) map[string]any {
	data := map[string]any{"configured": configured}
	if !configured {
		data["setup"] = setupHint
	}
	return data
}

func videoStatusData(s studio.VideoStatus) map[string]any {
	data := map[string]any{
		"run_id":     s.RunID,
		"message":    s.Message,
		"running":    s.Running,
		"extending":  s.Extending,
		"has_video":  s.HasVideo,
		"updated_at": s.UpdatedAt,
	}
	if s.Video != nil {
		data["video"] = s.Video
	}
	if s.Error != "" {
		data["error"] = s.Error
	}
	return data
}

// mediaPayload is an inline file sent by the browser, or a file picked from the
// media library by name. Data is base64 in JSON.
type mediaPayload struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Library  string `json:"library,omitempty"`
}

func (h *Handler) resolveMedia(r *http.Request, p *mediaPayload, accept ...string) (*ai.Media, error) {
	if p == nil {
		return nil, nil
	}
	if p.Library != "" {
		f, err := h.creds.PickFile(r.Context(), credential.PickOptions{Name: p.Library, Accept: accept})
		if err != nil {
			return nil, err
		}
		return &ai.Media{Data: f.Data, MIMEType: f.MIMEType}, nil
	}
	if len(p.Data) == 0 {
		return nil, nil
	}
	if p.MIMEType != "" && !credential.Accepts(accept, p.MIMEType) {
		return nil, fmt.Errorf("%w: unsupported media type %s", studio.ErrInvalidInput, p.MIMEType)
	}
	return &ai.Media{Data: p.Data, MIMEType: p.MIMEType}, nil
}

// decode reads a JSON body bounded by the upload limit. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	limit := int64(h.config.Server.MaxUploadMB) << 20
	if limit <= 0 {
		limit = 20 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error": fmt.Sprintf("request exceeds %s", humanize.IBytes(uint64(limit))),
			})
			return false
		}
		h.writeError(w, fmt.Errorf("%w: invalid JSON: %v", studio.ErrInvalidInput, err))
		return false
	}
	return true
}

// writeError maps domain errors to status codes. Panel failures carry the
// status text the panel shows.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var panelErr *studio.PanelError
	var pollErr *jobs.PollError
	switch {
	case errors.Is(err, credential.ErrNotConfigured):
		status = http.StatusPreconditionFailed
		body["error"] = credential.ErrNotConfigured.Error()
		body["setup"] = setupHint
	case errors.Is(err, studio.ErrEmptyResult):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, studio.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, studio.ErrBusy), errors.Is(err, jobs.ErrNoSource):
		status = http.StatusConflict
	case errors.Is(err, studio.ErrNoArtifact), errors.Is(err, credential.ErrNoFile):
		status = http.StatusNotFound
	case errors.As(err, &panelErr):
		status = http.StatusBadGateway
		body["error"] = panelErr.Message
		body["panel"] = panelErr.Panel
	case errors.As(err, &pollErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", logger.Int("status", status), logger.Error(err))
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeBytes(w http.ResponseWriter, mimeType string, data []byte) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
