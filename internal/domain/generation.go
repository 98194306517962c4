package domain

// Tier identifies which response generation strategy produced a reply.
type Tier string

const (
	TierAgent       Tier = "agent"
	TierDirectModel Tier = "direct-model"
	TierStatic      Tier = "static"
)

// GenerationResult is built once per request. Only Text is persisted.
type GenerationResult struct {
	Text      string
	AgentType string
	Citations []string
	Tier      Tier
}

// SessionContext is the per-request session information handed to generators.
type SessionContext struct {
	SessionID    string
	UserID       string
	PriorContext string
}
