package studio

import (
	"context"
	"strings"

	"github.com/yegors/co-studio/internal/ai"
	"github.com/yegors/co-studio/pkg/logger"
)

// Assets flags the final files the artist attached to a plan request
type Assets struct {
	Song  bool `json:"song"`
	Art   bool `json:"art"`
	Video bool `json:"video"`
}

// Monetization is the promotion planning panel
type Monetization struct {
	provider ai.TextProvider
	project  *Project
	cfg      Config
	logger   *logger.Logger
	busy     busyFlag
}

// NewMonetization creates the monetization panel
func NewMonetization(provider ai.TextProvider, project *Project, cfg Config, log *logger.Logger) *Monetization {
	return &Monetization{provider: provider, project: project, cfg: cfg, logger: log.Named("monetization")}
}

// Plan writes a promotion and monetization plan for the described song
func (m *Monetization) Plan(ctx context.Context, description string, assets Assets) (string, error) {
	description += assetsAppendix(assets)
	if strings.TrimSpace(description) == "" {
		return "", invalid("song description is empty")
	}
	if !m.busy.acquire() {
		return "", ErrBusy
	}
	defer m.busy.release()

	m.project.Clear(ArtifactPlan)
	res, err := m.provider.GenerateText(ctx, nil, monetizationPrompt(description), nil, ai.TextConfig{
		Model:             m.cfg.Models.Pro,
		SystemInstruction: monetizationInstruction,
	})
	if err != nil {
		m.logger.Error("Failed to generate monetization plan", logger.Error(err))
		return "", failed("monetization", planFailed, err)
	}

	plan := FormatResponse(res.Text)
	m.project.Put(ArtifactPlan, []byte(plan), "text/plain; charset=utf-8")
	return plan, nil
}
