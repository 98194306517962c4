package usecase

import (
	"context"
	"errors"
	"strings"

	"healthcare-assistant/internal/domain"
)

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.3
)

// Completion is a single prompt/completion request.
type Completion struct {
	ModelID     string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type ModelClient interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// DirectModelGenerator issues one bounded, low-temperature completion.
type DirectModelGenerator struct {
	client      ModelClient
	settings    *SettingsLoader
	agentType   string
	maxTokens   int
	temperature float64
}

type DirectOption func(*DirectModelGenerator)

func WithMaxTokens(n int) DirectOption {
	return func(g *DirectModelGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func WithTemperature(t float64) DirectOption {
	return func(g *DirectModelGenerator) {
		if t >= 0 && t <= 1 {
			g.temperature = t
		}
	}
}

func NewDirectModelGenerator(client ModelClient, settings *SettingsLoader, agentType string, opts ...DirectOption) (*DirectModelGenerator, error) {
	if client == nil {
		return nil, errors.New("usecase: model client must not be nil")
	}
	if settings == nil {
		return nil, errors.New("usecase: settings loader must not be nil")
	}
	agentType = strings.TrimSpace(agentType)
	if agentType == "" {
		return nil, errors.New("usecase: agent type must not be empty")
	}
	g := &DirectModelGenerator{
		client:      client,
		settings:    settings,
		agentType:   agentType,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *DirectModelGenerator) Tier() domain.Tier { return domain.TierDirectModel }

func (g *DirectModelGenerator) Generate(ctx context.Context, req GenerationRequest) (domain.GenerationResult, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return domain.GenerationResult{}, generationError(domain.TierDirectModel, "settings_unavailable", err)
	}

	raw, err := g.client.Complete(ctx, Completion{
		ModelID:     s.ModelID,
		System:      buildSystemPrompt(),
		Prompt:      buildUserPrompt(req),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return domain.GenerationResult{}, generationError(domain.TierDirectModel, "completion_error", err)
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.GenerationResult{}, generationError(domain.TierDirectModel, "empty_completion", nil)
	}
	return domain.GenerationResult{
		Text:      text,
		AgentType: g.agentType,
		Citations: []string{},
		Tier:      domain.TierDirectModel,
	}, nil
}
