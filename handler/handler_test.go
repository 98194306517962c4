package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"healthcare-assistant/internal/domain"
	"healthcare-assistant/internal/usecase"
)

type stubUseCase struct {
	out usecase.ChatOutput
	err error
	in  usecase.ChatInput

	sessions    []domain.SessionSummary
	sessionsErr error
	userID      string
	limit       int

	turns     []domain.ConversationTurn
	turnsErr  error
	sessionID string

	chatCalls int
	panics    bool
}

func (s *stubUseCase) Chat(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	s.chatCalls++
	s.in = in
	if s.panics {
		panic("boom")
	}
	return s.out, s.err
}

func (s *stubUseCase) RecentSessions(_ context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	s.userID = userID
	s.limit = limit
	return s.sessions, s.sessionsErr
}

func (s *stubUseCase) Conversation(_ context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	s.sessionID = sessionID
	return s.turns, s.turnsErr
}

var servedAt = time.Date(2026, 3, 1, 12, 0, 0, 123_000_000, time.UTC)

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func getEvent(path string, query map[string]string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  path,
		Headers:               map[string]string{},
		QueryStringParameters: query,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, uc UseCase) *Handler {
	t.Helper()
	h, err := NewHandler(uc)
	require.NoError(t, err)
	h.now = func() time.Time { return servedAt }
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_ChatHappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{
		Response:     "Rest and hydrate.",
		AgentType:    "bedrock-agent",
		SessionID:    "session-1",
		Intent:       domain.IntentSymptomInquiry,
		Tier:         domain.TierAgent,
		Timestamp:    servedAt,
		Citations:    []string{"s3://kb/headache.md"},
		HistorySaved: true,
	}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"I have a headache","userId":"u1","sessionId":"session-1","context":"prior"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ChatInput{Message: "I have a headache", UserID: "u1", SessionID: "session-1", Context: "prior"}, uc.in)

	out := parseBody[chatResponse](t, resp.Body)
	require.Equal(t, "Rest and hydrate.", out.Response)
	require.Equal(t, "bedrock-agent", out.AgentType)
	require.Equal(t, "session-1", out.SessionID)
	require.Equal(t, "symptomInquiry", out.Intent)
	require.Equal(t, "2026-03-01T12:00:00.123Z", out.Timestamp)
	require.Equal(t, []string{"s3://kb/headache.md"}, out.Citations)
	require.True(t, out.HistorySaved)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
}

func TestHandle_ChatCitationsNeverNull(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{Response: "ok", AgentType: "static-fallback", Tier: domain.TierStatic}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"hi"}`))
	require.NoError(t, err)
	require.Contains(t, resp.Body, `"citations":[]`)
	require.Contains(t, resp.Body, `"historySaved":false`)
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, uc.chatCalls)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "error-handler", out.AgentType)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "empty message", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "too long", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "message_too_long"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "final_tier_failed"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h := mustNewHandler(t, uc)

			resp, err := h.Handle(context.Background(), makeEvent(`{"message":"What should I do?"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.Equal(t, "error-handler", out.AgentType)
			require.Equal(t, "2026-03-01T12:00:00.123Z", out.Timestamp)
			require.NotContains(t, resp.Body, "boom")
			require.NotContains(t, resp.Body, "final_tier_failed")
		})
	}
}

func TestHandle_RecoversFromPanic(t *testing.T) {
	uc := &stubUseCase{panics: true}
	h := mustNewHandler(t, uc)
	req := makeEvent(`{"message":"What should I do?"}`)
	req.Headers["X-Correlation-Id"] = "corr-panic"

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "corr-panic", resp.Headers["X-Correlation-Id"])

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInternal), out.Error)
	require.Equal(t, "error-handler", out.AgentType)
	require.NotContains(t, resp.Body, "boom")
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{Response: "ok", SessionID: "s"}}
	h := mustNewHandler(t, uc)

	event := makeEvent(`{"message":"hi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_Preflight(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions, Path: "/chat"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, resp.Body)
	require.Contains(t, resp.Headers["Access-Control-Allow-Methods"], "POST")
}

func TestHandle_UnknownRouteAndMethod(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	resp, err := h.Handle(context.Background(), getEvent("/nowhere", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", parseBody[errorResponse](t, resp.Body).Error)

	resp, err = h.Handle(context.Background(), getEvent("/chat", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_RecentSessions(t *testing.T) {
	uc := &stubUseCase{sessions: []domain.SessionSummary{
		{SessionID: "s2", UserID: "u1", LastActivity: servedAt, LastMessage: "latest"},
		{SessionID: "s1", UserID: "u1", LastActivity: servedAt.Add(-time.Hour), LastMessage: "older"},
	}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), getEvent("/sessions", map[string]string{"userId": "u1", "limit": "5"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "u1", uc.userID)
	require.Equal(t, 5, uc.limit)

	out := parseBody[sessionsResponse](t, resp.Body)
	require.Equal(t, "u1", out.UserID)
	require.Len(t, out.Sessions, 2)
	require.Equal(t, "s2", out.Sessions[0].SessionID)
	require.Equal(t, "latest", out.Sessions[0].LastMessage)
}

func TestHandle_RecentSessionsEmptyIsArray(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{sessions: []domain.SessionSummary{}})
	resp, err := h.Handle(context.Background(), getEvent("/sessions", map[string]string{"userId": "u1"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, `"sessions":[]`)
}

func TestHandle_RecentSessionsBadLimit(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})
	resp, err := h.Handle(context.Background(), getEvent("/sessions", map[string]string{"userId": "u1", "limit": "ten"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_StoreReadFailure(t *testing.T) {
	uc := &stubUseCase{sessionsErr: &usecase.StoreError{Op: "recent_sessions", Err: errors.New("ResourceNotFoundException")}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), getEvent("/sessions", map[string]string{"userId": "u1"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorStore), parseBody[errorResponse](t, resp.Body).Error)
	require.NotContains(t, resp.Body, "ResourceNotFoundException")
}

func TestHandle_Conversation(t *testing.T) {
	uc := &stubUseCase{turns: []domain.ConversationTurn{
		{SessionID: "s1", MessageID: "m1", Role: domain.RoleAgent, Text: "first", Timestamp: servedAt},
		{SessionID: "s1", MessageID: "m2", Role: domain.RoleAgent, Text: "second", Timestamp: servedAt.Add(time.Second)},
	}}
	h := mustNewHandler(t, uc)

	event := getEvent("/sessions/s1/messages", nil)
	event.PathParameters = map[string]string{"sessionId": "s1"}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "s1", uc.sessionID)

	out := parseBody[messagesResponse](t, resp.Body)
	require.Equal(t, "s1", out.SessionID)
	require.Len(t, out.Messages, 2)
	require.Equal(t, "first", out.Messages[0].Text)
	require.Equal(t, "agent", out.Messages[0].Role)
	require.Equal(t, "2026-03-01T12:00:01.123Z", out.Messages[1].Timestamp)
}

func TestHandle_ConversationFallsBackToPathSegment(t *testing.T) {
	uc := &stubUseCase{}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), getEvent("/sessions/abc/messages/", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "abc", uc.sessionID)
	require.Contains(t, resp.Body, `"messages":[]`)
}
