package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/co-studio/internal/config"
	"github.com/yegors/co-studio/internal/metrics"
	"github.com/yegors/co-studio/pkg/logger"
)

// Router wires the handlers to URL patterns
type Router struct {
	handler *Handler
	live    *LiveHandler
	static  http.Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new router
func NewRouter(handler *Handler, liveHandler *LiveHandler, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		live:    liveHandler,
		static:  NewStaticFileHandler(cfg.Server.StaticFilesDir, log),
		config:  cfg,
		logger:  log.Named("router"),
	}
}

// Routes returns the HTTP handler for every listener
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.observe)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	h := rt.handler

	r.Get("/ws", h.HandleWebSocket)
	if rt.config.Metrics.Enabled {
		r.Handle(rt.config.Metrics.Path, promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/config", h.GetConfig)
		r.Get("/options", h.GetOptions)

		r.Get("/project", h.GetProject)
		r.Put("/project", h.UpdateProject)
		r.Get("/download/{kind}", h.Download)

		r.Get("/credential", h.GetCredential)
		r.Post("/credential", h.SetCredential)
		r.Post("/credential/picker", h.OpenCredentialPicker)
		r.Get("/files/{name}", h.PickFile)

		r.Get("/chat", h.GetChat)
		r.Delete("/chat", h.ResetChat)
		r.Post("/chat/preset", h.SetPreset)
		r.Get("/video/status", h.VideoStatus)
		r.Get("/video/file", h.VideoFile)
		r.Delete("/video", h.CancelVideo)
		r.Get("/vocals/coach", h.CoachTranscript)
		r.Get("/art/current", h.CurrentArt)
		r.Get("/transcription", h.GetTranscription)
		r.Delete("/live/{mode}", rt.live.StopSession)
		r.Get("/live/{mode}/ws", rt.live.WebSocketHandler)

		// generation endpoints answer 412 until an API key is set
		r.Group(func(r chi.Router) {
			r.Use(h.RequireCredential)

			r.Post("/chat", h.SendChat)
			r.Post("/chat/revise", h.ReviseChat)
			r.Post("/chat/inspiration", h.Inspiration)

			r.Post("/wizard/compose", h.Compose)
			r.Post("/wizard/vocals", h.WizardVocals)

			r.Post("/vocals", h.GenerateVocals)
			r.Post("/vocals/revise", h.ReviseVocals)
			r.Get("/vocals/preview/{voice}", h.PreviewVoice)

			r.Post("/art", h.GenerateArt)
			r.Post("/art/edit", h.EditArt)
			r.Post("/art/concepts", h.ArtConcepts)

			r.Post("/video", h.GenerateVideo)
			r.Post("/video/extend", h.ExtendVideo)
			r.Post("/video/storyboard", h.Storyboard)
			r.Post("/video/analyze", h.AnalyzeVideo)

			r.Post("/monetization", h.MonetizationPlan)
		})
	})

	r.Handle("/*", rt.static)
	return r
}

// observe logs and counts every request by its route pattern
func (rt *Router) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		metrics.ObserveHTTP(route, r.Method, status, started)
		rt.logger.Debug("Request served",
			logger.String("method", r.Method),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Duration("duration", time.Since(started)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors applies the configured allowed origins
func (rt *Router) cors(next http.Handler) http.Handler {
	allowed := rt.config.Server.CORSAllowedOrigins
	all := slices.Contains(allowed, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (all || slices.Contains(allowed, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", "X-Request-Id"}, ", "))
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
