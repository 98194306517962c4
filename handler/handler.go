package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthcare-assistant/internal/domain"
	"healthcare-assistant/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	errorAgentType    = "error-handler"
	errorNotFound     = "NOT_FOUND"
	errorMethod       = "METHOD_NOT_ALLOWED"

	// timestampLayout matches the millisecond ISO-8601 form clients expect.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// UseCase is the application surface the handler depends on.
type UseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	RecentSessions(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error)
	Conversation(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error)
}

type Handler struct {
	uc     UseCase
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(uc UseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Context   string `json:"context"`
}

type chatResponse struct {
	Response     string   `json:"response"`
	AgentType    string   `json:"agentType"`
	SessionID    string   `json:"sessionId"`
	Intent       string   `json:"intent"`
	Timestamp    string   `json:"timestamp"`
	Citations    []string `json:"citations"`
	HistorySaved bool     `json:"historySaved"`
}

type sessionItem struct {
	SessionID    string `json:"sessionId"`
	LastActivity string `json:"lastActivity"`
	LastMessage  string `json:"lastMessage"`
}

type sessionsResponse struct {
	UserID   string        `json:"userId"`
	Sessions []sessionItem `json:"sessions"`
}

type messageItem struct {
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type messagesResponse struct {
	SessionID string        `json:"sessionId"`
	Messages  []messageItem `json:"messages"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	AgentType string `json:"agentType"`
	Timestamp string `json:"timestamp"`
}

// Handle routes an API Gateway proxy request. It never returns a non-nil
// error; every failure is rendered as a JSON error body.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With(zap.String("correlationId", correlationID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered", zap.Any("panic", r), zap.Stack("stack"))
			resp = h.fail(http.StatusInternalServerError, correlationID, string(usecase.ErrorInternal), "Something went wrong. Please try again later.")
			err = nil
		}
	}()

	if req.HTTPMethod == http.MethodOptions {
		return h.respond(http.StatusNoContent, correlationID, nil), nil
	}

	segments := pathSegments(req.Path)
	switch {
	case len(segments) == 1 && segments[0] == "chat":
		if req.HTTPMethod != http.MethodPost {
			return h.fail(http.StatusMethodNotAllowed, correlationID, errorMethod, "Method not allowed."), nil
		}
		return h.chat(ctx, log, correlationID, req), nil
	case len(segments) == 1 && segments[0] == "sessions":
		if req.HTTPMethod != http.MethodGet {
			return h.fail(http.StatusMethodNotAllowed, correlationID, errorMethod, "Method not allowed."), nil
		}
		return h.sessions(ctx, log, correlationID, req), nil
	case len(segments) == 3 && segments[0] == "sessions" && segments[2] == "messages":
		if req.HTTPMethod != http.MethodGet {
			return h.fail(http.StatusMethodNotAllowed, correlationID, errorMethod, "Method not allowed."), nil
		}
		sessionID := req.PathParameters["sessionId"]
		if sessionID == "" {
			sessionID = segments[1]
		}
		return h.messages(ctx, log, correlationID, sessionID), nil
	default:
		return h.fail(http.StatusNotFound, correlationID, errorNotFound, "Route not found."), nil
	}
}

func (h *Handler) chat(ctx context.Context, log *zap.Logger, correlationID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body chatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		log.Info("rejecting malformed chat body", zap.Error(err))
		return h.fail(http.StatusBadRequest, correlationID, string(usecase.ErrorInvalidInput), "Request body must be a JSON object with a message.")
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		Message:   body.Message,
		UserID:    body.UserID,
		SessionID: body.SessionID,
		Context:   body.Context,
	})
	if err != nil {
		return h.mapError(log, correlationID, err)
	}

	log.Info("chat served",
		zap.String("sessionId", out.SessionID),
		zap.String("tier", string(out.Tier)),
		zap.String("intent", string(out.Intent)),
		zap.String("urgency", string(out.Urgency)),
		zap.Bool("historySaved", out.HistorySaved))

	citations := out.Citations
	if citations == nil {
		citations = []string{}
	}
	return h.respond(http.StatusOK, correlationID, chatResponse{
		Response:     out.Response,
		AgentType:    out.AgentType,
		SessionID:    out.SessionID,
		Intent:       string(out.Intent),
		Timestamp:    formatTime(out.Timestamp),
		Citations:    citations,
		HistorySaved: out.HistorySaved,
	})
}

func (h *Handler) sessions(ctx context.Context, log *zap.Logger, correlationID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	userID := req.QueryStringParameters["userId"]
	limit := 0
	if raw := strings.TrimSpace(req.QueryStringParameters["limit"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return h.fail(http.StatusBadRequest, correlationID, string(usecase.ErrorInvalidInput), "limit must be a positive integer.")
		}
		limit = n
	}

	sessions, err := h.uc.RecentSessions(ctx, userID, limit)
	if err != nil {
		return h.mapError(log, correlationID, err)
	}

	items := make([]sessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionItem{
			SessionID:    s.SessionID,
			LastActivity: formatTime(s.LastActivity),
			LastMessage:  s.LastMessage,
		})
	}
	return h.respond(http.StatusOK, correlationID, sessionsResponse{UserID: strings.TrimSpace(userID), Sessions: items})
}

func (h *Handler) messages(ctx context.Context, log *zap.Logger, correlationID, sessionID string) events.APIGatewayProxyResponse {
	turns, err := h.uc.Conversation(ctx, sessionID)
	if err != nil {
		return h.mapError(log, correlationID, err)
	}

	items := make([]messageItem, 0, len(turns))
	for _, t := range turns {
		items = append(items, messageItem{
			MessageID: t.MessageID,
			Role:      string(t.Role),
			Text:      t.Text,
			Timestamp: formatTime(t.Timestamp),
		})
	}
	return h.respond(http.StatusOK, correlationID, messagesResponse{SessionID: sessionID, Messages: items})
}

// mapError converts use case failures into caller-facing responses without
// leaking internal detail.
func (h *Handler) mapError(log *zap.Logger, correlationID string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorInvalidInput {
		log.Info("rejecting invalid request", zap.String("reason", ucErr.Reason))
		return h.fail(http.StatusBadRequest, correlationID, string(usecase.ErrorInvalidInput), invalidInputMessage(ucErr.Reason))
	}

	var storeErr *usecase.StoreError
	if errors.As(err, &storeErr) {
		log.Error("conversation store read failed", zap.String("op", storeErr.Op), zap.Error(err))
		return h.fail(http.StatusInternalServerError, correlationID, string(usecase.ErrorStore), "Conversation history is temporarily unavailable.")
	}

	log.Error("request failed", zap.Error(err))
	return h.fail(http.StatusInternalServerError, correlationID, string(usecase.ErrorInternal), "Something went wrong. Please try again later.")
}

func invalidInputMessage(reason string) string {
	switch reason {
	case "empty_message":
		return "message must not be empty."
	case "message_too_long":
		return "message is too long."
	case "missing_user_id":
		return "userId is required."
	case "missing_session_id":
		return "sessionId is required."
	default:
		return "Invalid request."
	}
}

func (h *Handler) fail(status int, correlationID, code, message string) events.APIGatewayProxyResponse {
	return h.respond(status, correlationID, errorResponse{
		Error:     code,
		Message:   message,
		AgentType: errorAgentType,
		Timestamp: formatTime(h.now()),
	})
}

func (h *Handler) respond(status int, correlationID string, payload any) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type," + correlationHeader,
		"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
		correlationHeader:              correlationID,
	}
	if payload == nil {
		return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"INTERNAL_ERROR","agentType":"error-handler"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(body)}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pathSegments(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}
