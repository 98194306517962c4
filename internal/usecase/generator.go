package usecase

import (
	"context"
	"time"

	"healthcare-assistant/internal/domain"
)

// GenerationRequest is what every tier receives. Tiers must treat it as
// read-only so a failed attempt cannot leak state into the next one.
type GenerationRequest struct {
	Message        string
	Classification domain.Classification
	Session        domain.SessionContext
}

// Generator is one response generation tier.
type Generator interface {
	Tier() domain.Tier
	Generate(ctx context.Context, req GenerationRequest) (domain.GenerationResult, error)
}

// Recorder receives pipeline observations. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	TierFailed(tier domain.Tier, reason string)
	Responded(tier domain.Tier, elapsed time.Duration)
	HistoryWriteFailed()
}

type nopRecorder struct{}

func (nopRecorder) TierFailed(domain.Tier, string)       {}
func (nopRecorder) Responded(domain.Tier, time.Duration) {}
func (nopRecorder) HistoryWriteFailed()                  {}
