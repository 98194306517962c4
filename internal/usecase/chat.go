package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthcare-assistant/internal/domain"
)

const (
	defaultMaxMessageLen = 2000
	defaultSessionLimit  = 10
	maxSessionLimit      = 50

	// messageIDLayout is fixed width so message ids sort chronologically.
	messageIDLayout = "2006-01-02T15:04:05.000000000Z"
)

// ConversationStore is the durable conversation history.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
	RecentSessions(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error)
	GetConversation(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error)
}

type Responder interface {
	Respond(ctx context.Context, in RespondInput) (Reply, error)
}

type ChatInput struct {
	Message   string
	UserID    string
	SessionID string
	Context   string
}

type ChatOutput struct {
	Response  string
	AgentType string
	SessionID string
	Intent    domain.Intent
	Urgency   domain.Urgency
	Tier      domain.Tier
	Timestamp time.Time
	Citations []string
	// HistorySaved is false when the agent turn could not be persisted.
	HistorySaved bool
}

// ChatService handles one chat message end to end and serves history reads.
type ChatService struct {
	responder     Responder
	store         ConversationStore
	metrics       Recorder
	logger        *zap.Logger
	maxMessageLen int
	now           func() time.Time
}

// NewChatService builds a ChatService. A nil logger or recorder is replaced
// by a no-op and a non-positive maxMessageLen falls back to the default.
func NewChatService(r Responder, s ConversationStore, logger *zap.Logger, metrics Recorder, maxMessageLen int) (*ChatService, error) {
	if r == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessageLen
	}
	return &ChatService{
		responder:     r,
		store:         s,
		metrics:       metrics,
		logger:        logger,
		maxMessageLen: maxMessageLen,
		now:           time.Now,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	reply, err := s.responder.Respond(ctx, RespondInput{
		Message:      message,
		UserID:       in.UserID,
		SessionID:    in.SessionID,
		PriorContext: in.Context,
	})
	if err != nil {
		return ChatOutput{}, err
	}

	ts := s.now().UTC()
	turn := domain.ConversationTurn{
		SessionID: reply.SessionID,
		MessageID: newMessageID(ts),
		UserID:    reply.UserID,
		Role:      domain.RoleAgent,
		Text:      reply.Result.Text,
		Timestamp: ts,
	}
	saved := true
	if err := s.store.AppendTurn(ctx, turn); err != nil {
		saved = false
		storeErr := &StoreError{Op: "append_turn", Err: err}
		s.metrics.HistoryWriteFailed()
		s.logger.Error("conversation turn not persisted",
			zap.String("sessionId", turn.SessionID),
			zap.String("messageId", turn.MessageID),
			zap.Error(storeErr))
	}

	citations := reply.Result.Citations
	if reply.Result.Tier != domain.TierAgent || citations == nil {
		citations = []string{}
	}
	return ChatOutput{
		Response:     reply.Result.Text,
		AgentType:    reply.Result.AgentType,
		SessionID:    reply.SessionID,
		Intent:       reply.Classification.Intent,
		Urgency:      reply.Classification.Urgency,
		Tier:         reply.Result.Tier,
		Timestamp:    ts,
		Citations:    citations,
		HistorySaved: saved,
	}, nil
}

// RecentSessions lists a user's sessions, most recent first.
func (s *ChatService) RecentSessions(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(ErrorInvalidInput, "missing_user_id", nil)
	}
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	if limit > maxSessionLimit {
		limit = maxSessionLimit
	}
	sessions, err := s.store.RecentSessions(ctx, userID, limit)
	if err != nil {
		return nil, &StoreError{Op: "recent_sessions", Err: err}
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}
	return sessions, nil
}

// Conversation returns a session's turns in chronological order.
func (s *ChatService) Conversation(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	turns, err := s.store.GetConversation(ctx, sessionID)
	if err != nil {
		return nil, &StoreError{Op: "get_conversation", Err: err}
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	return turns, nil
}

func newMessageID(ts time.Time) string {
	return ts.UTC().Format(messageIDLayout) + "#" + newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}
