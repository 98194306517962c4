package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"healthcare-assistant/internal/usecase"
)

// fakeGetter is a minimal paramstore stub for use within this package.
type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func completion() usecase.Completion {
	return usecase.Completion{
		ModelID:     "gpt-mock",
		System:      "You are careful.",
		Prompt:      "What is a healthy diet?",
		MaxTokens:   1000,
		Temperature: 0.3,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"sk-test"}`},
		"/healthcare-assistant",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_Validates(t *testing.T) {
	_, err := NewClient(nil, "/healthcare-assistant")
	require.ErrorContains(t, err, "nil")

	_, err = NewClient(&fakeGetter{}, " ")
	require.ErrorContains(t, err, "prefix")

	c, err := NewClient(&fakeGetter{}, "/healthcare-assistant/")
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.Equal(t, "/healthcare-assistant/open-ai-token", c.tokenParameterName())
}

func TestResolveAPIKey_CachedAfterSuccess(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`, onCall: func() { calls++ }}
	c, err := NewClient(g, "/healthcare-assistant")
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)

	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls)
}

func TestResolveAPIKey_RetriedAfterFailure(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	c, err := NewClient(g, "/healthcare-assistant")
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "ssm unavailable")

	g.err = nil
	g.val = `{"token":"sk-late"}`
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-late", key)
}

func TestFetchAPIKey(t *testing.T) {
	cases := []struct {
		name   string
		getter *fakeGetter
		param  string
		want   string
	}{
		{name: "missing token field", getter: &fakeGetter{val: `{"other":"value"}`}, param: "/p", want: "API token is empty"},
		{name: "malformed JSON", getter: &fakeGetter{val: `{"broken`}, param: "/p", want: "unmarshal"},
		{name: "getter error", getter: &fakeGetter{err: errors.New("ssm unavailable")}, param: "/p", want: "ssm unavailable"},
		{name: "empty name", getter: &fakeGetter{val: `{"token":"x"}`}, param: " ", want: "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fetchAPIKeyFromParamStore(context.Background(), tc.getter, tc.param)
			require.ErrorContains(t, err, tc.want)
		})
	}

	_, err := fetchAPIKeyFromParamStore(context.Background(), nil, "/p")
	require.ErrorContains(t, err, "nil")
}

func TestComplete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var sent chatRequest
		require.NoError(t, json.Unmarshal(raw, &sent))
		require.Equal(t, "gpt-mock", sent.Model)
		require.Equal(t, 1000, sent.MaxTokens)
		require.InDelta(t, 0.3, sent.Temperature, 1e-9)
		require.Equal(t, []chatMessage{
			{Role: "system", Content: "You are careful."},
			{Role: "user", Content: "What is a healthy diet?"},
		}, sent.Messages)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Eat vegetables."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Complete(context.Background(), completion())
	require.NoError(t, err)
	require.Equal(t, "Eat vegetables.", out)
}

func TestComplete_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "400", status: http.StatusBadRequest, body: `{"error":"bad request"}`, want: "unexpected status 400"},
		{name: "429", status: http.StatusTooManyRequests, body: `{"error":"rate limited"}`, want: "429"},
		{name: "500", status: http.StatusInternalServerError, body: `{"error":"internal"}`, want: "500"},
		{name: "invalid json", status: http.StatusOK, body: `not-a-json`, want: "decode response"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: "no choices"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).Complete(context.Background(), completion())
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestComplete_StatusErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), completion())
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.HTTPStatusCode())
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), completion())
	require.Error(t, err)
}

func TestComplete_NetworkError(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: `{"token":"sk-test"}`}, "/healthcare-assistant")
	require.NoError(t, err)
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Complete(context.Background(), completion())
	require.ErrorContains(t, err, "request failed")
}

func TestComplete_EmptyModel(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: `{"token":"sk-test"}`}, "/healthcare-assistant")
	require.NoError(t, err)
	in := completion()
	in.ModelID = ""
	_, err = c.Complete(context.Background(), in)
	require.ErrorContains(t, err, "model")
}
