package live

import (
	"context"
	"sync"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
)

// ControllerConfig holds what every session of a controller shares
type ControllerConfig struct {
	Model      string
	CoachVoice string
	Settings   Settings
}

// Controller owns at most one live session per panel
type Controller struct {
	provider ai.LiveProvider
	config   ControllerConfig
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewController creates a controller opening sessions through provider
func NewController(provider ai.LiveProvider, config ControllerConfig, logger *logger.Logger) *Controller {
	return &Controller{
		provider: provider,
		config:   config,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Start stops the panel's current session, if any, and starts a new one
func (c *Controller) Start(ctx context.Context, panel string, mode Mode, devices Devices, hooks Hooks) (*Session, error) {
	s := NewSession(c.provider, devices, mode, mode.LiveConfig(c.config.Model, c.config.CoachVoice), c.config.Settings, hooks, c.logger)

	c.mu.Lock()
	if prev, ok := c.sessions[panel]; ok {
		prev.Stop()
	}
	c.sessions[panel] = s
	c.mu.Unlock()

	go func() {
		<-s.Done()
		c.forget(panel, s)
	}()

	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Session returns the panel's current session
func (c *Controller) Session(panel string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[panel]
	return s, ok
}

// Stop stops the panel's session. It is a no-op when none is running.
func (c *Controller) Stop(panel string) {
	c.mu.Lock()
	s, ok := c.sessions[panel]
	c.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// Shutdown stops every session and waits for their teardown
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Controller) forget(panel string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[panel] == s {
		delete(c.sessions, panel)
	}
}
