package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Gemini  GeminiConfig  `toml:"gemini"`  // Generative API access and model selection
	Video   VideoConfig   `toml:"video"`   // Video job polling settings
	Live    LiveConfig    `toml:"live"`    // Live audio session settings
	Studio  StudioConfig  `toml:"studio"`  // Panel defaults
	Metrics MetricsConfig `toml:"metrics"` // Prometheus endpoint
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, needed for long generations)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the browser UI from (e.g., "www")
	MaxUploadMB        int      `toml:"max_upload_mb"`         // Upper bound for uploaded images and frames
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// GeminiConfig contains generative API settings
type GeminiConfig struct {
	APIKey        string `toml:"api_key"`        // Access credential; GEMINI_API_KEY / API_KEY in the environment or env_file override it
	EnvFile       string `toml:"env_file"`       // .env file consulted at start and when the credential picker is opened
	BaseURL       string `toml:"base_url"`       // Optional API base URL (e.g., for proxies)
	LiveTransport string `toml:"live_transport"` // "sdk" (default) or "raw" BidiGenerateContent websocket

	// Models
	FastModel      string `toml:"fast_model"`       // Quick text tasks (inspiration, art concepts, chat)
	ProModel       string `toml:"pro_model"`        // Lyrics, plans, storyboards, analysis, thinking chat
	SpeechModel    string `toml:"speech_model"`     // Text-to-speech
	ImageModel     string `toml:"image_model"`      // Image generation
	ImageEditModel string `toml:"image_edit_model"` // Image editing
	VideoModel     string `toml:"video_model"`      // Video generation
	ExtendModel    string `toml:"extend_model"`     // Video extension (needs the full generate model)
	LiveModel      string `toml:"live_model"`       // Native audio live sessions
	ThinkingBudget int    `toml:"thinking_budget"`  // Token budget for thinking mode in chat
}

// VideoConfig contains long-running job settings
type VideoConfig struct {
	PollIntervalSecs  int    `toml:"poll_interval_seconds"` // Fixed interval between status checks
	MaxPolls          int    `toml:"max_polls"`             // Ceiling on status checks per job (default 90, -1 = poll until done)
	Resolution        string `toml:"resolution"`            // Requested resolution (e.g., "720p")
	MaxAnalysisFrames int    `toml:"max_analysis_frames"`   // Frames accepted by video analysis
}

// LiveConfig contains live audio session settings
type LiveConfig struct {
	CaptureSampleRate  int    `toml:"capture_sample_rate"`  // Microphone rate sent upstream (Hz)
	PlaybackSampleRate int    `toml:"playback_sample_rate"` // Rate of audio returned by the model (Hz)
	BufferSize         int    `toml:"buffer_size"`          // Frames per capture buffer
	OutboundQueue      int    `toml:"outbound_queue"`       // Capture buffers queued for sending before new ones are dropped
	CoachVoice         string `toml:"coach_voice"`          // Prebuilt voice for the vocal coach
}

// StudioConfig contains panel defaults
type StudioConfig struct {
	ProjectTitle string `toml:"project_title"` // Initial project title used in download names
	DefaultVoice string `toml:"default_voice"` // Voice preselected in the vocal panels
	LibraryDir   string `toml:"library_dir"`   // Media library served by the file picker
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"` // Expose collectors
	Path    string `toml:"path"`    // HTTP path for the scrape endpoint
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if err := c.validateGemini(); err != nil {
		return err
	}

	// Video
	if c.Video.PollIntervalSecs == 0 {
		c.Video.PollIntervalSecs = 10
	}
	if c.Video.PollIntervalSecs < 0 {
		return fmt.Errorf("invalid poll_interval_seconds: %d", c.Video.PollIntervalSecs)
	}
	switch {
	case c.Video.MaxPolls == 0:
		c.Video.MaxPolls = 90
	case c.Video.MaxPolls < -1:
		return fmt.Errorf("invalid max_polls: %d (must be positive, or -1 for no limit)", c.Video.MaxPolls)
	}
	if c.Video.Resolution == "" {
		c.Video.Resolution = "720p"
	}
	if c.Video.MaxAnalysisFrames <= 0 {
		c.Video.MaxAnalysisFrames = 8
	}

	// Live
	if c.Live.CaptureSampleRate == 0 {
		c.Live.CaptureSampleRate = 16000
	}
	if c.Live.PlaybackSampleRate == 0 {
		c.Live.PlaybackSampleRate = 24000
	}
	if c.Live.BufferSize == 0 {
		c.Live.BufferSize = 4096
	}
	if c.Live.OutboundQueue == 0 {
		c.Live.OutboundQueue = 32
	}
	if c.Live.CaptureSampleRate < 0 || c.Live.PlaybackSampleRate < 0 || c.Live.BufferSize < 0 || c.Live.OutboundQueue < 0 {
		return fmt.Errorf("live audio settings must be positive")
	}
	if c.Live.CoachVoice == "" {
		c.Live.CoachVoice = "Zephyr"
	}

	// Studio
	if c.Studio.ProjectTitle == "" {
		c.Studio.ProjectTitle = "My AI Project"
	}
	if c.Studio.DefaultVoice == "" {
		c.Studio.DefaultVoice = "Kore"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// Validate AdditionalPorts
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	// Set default static files directory if not specified
	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 20
	}
	return nil
}

func (c *Config) validateGemini() error {
	g := &c.Gemini
	switch g.LiveTransport {
	case "":
		g.LiveTransport = "sdk"
	case "sdk", "raw":
	default:
		return fmt.Errorf("invalid live_transport: %s (must be 'sdk' or 'raw')", g.LiveTransport)
	}
	if g.EnvFile == "" {
		g.EnvFile = ".env"
	}

	defaults := []struct {
		field *string
		value string
	}{
		{&g.FastModel, "gemini-2.5-flash"},
		{&g.ProModel, "gemini-2.5-pro"},
		{&g.SpeechModel, "gemini-2.5-flash-preview-tts"},
		{&g.ImageModel, "imagen-4.0-generate-001"},
		{&g.ImageEditModel, "gemini-2.5-flash-image"},
		{&g.VideoModel, "veo-3.1-fast-generate-preview"},
		{&g.ExtendModel, "veo-3.1-generate-preview"},
		{&g.LiveModel, "gemini-2.5-flash-native-audio-preview-09-2025"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
	if g.ThinkingBudget == 0 {
		g.ThinkingBudget = 32768
	}
	if g.ThinkingBudget < 0 {
		return fmt.Errorf("invalid thinking_budget: %d", g.ThinkingBudget)
	}
	return nil
}
