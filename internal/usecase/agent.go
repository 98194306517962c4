package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"healthcare-assistant/internal/domain"
)

const AgentTypeAgentRuntime = "bedrock-agent"

// AgentRequest is one turn sent to the agent runtime session.
type AgentRequest struct {
	AgentID      string
	AgentAliasID string
	SessionID    string
	Text         string
	Attributes   map[string]string
}

// AgentReply is the fully drained agent stream. Traces are kept for
// diagnostics and never returned to the caller.
type AgentReply struct {
	Text      string
	Citations []string
	Traces    []string
}

type AgentInvoker interface {
	InvokeAgent(ctx context.Context, req AgentRequest) (AgentReply, error)
}

// intentFocus tells the agent which angle to take for each intent.
var intentFocus = map[domain.Intent]string{
	domain.IntentSymptomInquiry:        "Symptom assessment: clarify onset, duration and severity, and identify warning signs that need care.",
	domain.IntentMedicationQuestion:    "Medication guidance: dosing basics, common side effects and interactions, and when to ask a pharmacist.",
	domain.IntentAppointmentScheduling: "Care navigation: help the user pick the right kind of visit and prepare for it.",
	domain.IntentMentalHealth:          "Emotional wellbeing: supportive, non-judgmental guidance and pointers to professional help.",
	domain.IntentPreventiveCare:        "Preventive care: screenings, vaccinations and routine checkups appropriate to the user.",
	domain.IntentGeneralHealth:         "General wellness: nutrition, exercise, sleep and healthy habits.",
	domain.IntentGeneral:               "General health information with a clear reminder to consult a professional.",
}

func focusFor(intent domain.Intent) string {
	if f, ok := intentFocus[intent]; ok {
		return f
	}
	return intentFocus[domain.IntentGeneral]
}

// AgentGenerator is the stateful, reasoning tier backed by an agent runtime.
type AgentGenerator struct {
	invoker  AgentInvoker
	settings *SettingsLoader
	logger   *zap.Logger
}

func NewAgentGenerator(inv AgentInvoker, settings *SettingsLoader, logger *zap.Logger) (*AgentGenerator, error) {
	if inv == nil {
		return nil, errors.New("usecase: agent invoker must not be nil")
	}
	if settings == nil {
		return nil, errors.New("usecase: settings loader must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentGenerator{invoker: inv, settings: settings, logger: logger}, nil
}

func (g *AgentGenerator) Tier() domain.Tier { return domain.TierAgent }

func (g *AgentGenerator) Generate(ctx context.Context, req GenerationRequest) (domain.GenerationResult, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return domain.GenerationResult{}, generationError(domain.TierAgent, "settings_unavailable", err)
	}

	reply, err := g.invoker.InvokeAgent(ctx, AgentRequest{
		AgentID:      s.AgentID,
		AgentAliasID: s.AgentAliasID,
		SessionID:    req.Session.SessionID,
		Text:         req.Message,
		Attributes:   agentAttributes(req),
	})
	if err != nil {
		return domain.GenerationResult{}, generationError(domain.TierAgent, "invoke_error", err)
	}
	text := strings.TrimSpace(reply.Text)
	if text == "" {
		return domain.GenerationResult{}, generationError(domain.TierAgent, "empty_stream", nil)
	}
	if len(reply.Traces) > 0 {
		g.logger.Debug("agent reasoning trace",
			zap.String("sessionId", req.Session.SessionID),
			zap.Int("parts", len(reply.Traces)),
			zap.Strings("kinds", reply.Traces))
	}

	citations := reply.Citations
	if citations == nil {
		citations = []string{}
	}
	return domain.GenerationResult{
		Text:      text,
		AgentType: AgentTypeAgentRuntime,
		Citations: citations,
		Tier:      domain.TierAgent,
	}, nil
}

func agentAttributes(req GenerationRequest) map[string]string {
	attrs := map[string]string{
		"intent":     string(req.Classification.Intent),
		"urgency":    string(req.Classification.Urgency),
		"confidence": fmt.Sprintf("%.2f", req.Classification.Confidence),
		"focus":      focusFor(req.Classification.Intent),
	}
	if c := strings.TrimSpace(req.Session.PriorContext); c != "" {
		attrs["context"] = c
	}
	if req.Session.UserID != "" {
		attrs["userId"] = req.Session.UserID
	}
	return attrs
}
