//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	ai "bedrock-chatbot/internal/infra/adapters/ai"
	"bedrock-chatbot/internal/infra/inmem"
	"bedrock-chatbot/internal/memory"
	"bedrock-chatbot/internal/usecase"
)

const testSecret = "test-cookie-secret-please-change"

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newEchoServerWithCookieTTL(t, time.Hour)
}

func newEchoServerWithCookieTTL(t *testing.T, cookieTTL time.Duration) *httptest.Server {
	t.Helper()
	tok, err := memory.NewTiktokenTokenizer(memory.DefaultEncoding)
	require.NoError(t, err)
	store := inmem.NewSessionStore(time.Hour)
	chat := usecase.NewChatUseCase(store, inmem.NewLocker(), ai.NewNoopAIAdapter("", model.DefaultDecoding()),
		tok, nil, nil, usecase.ChatOptions{MaxTokenLimit: 300}, newTestLogger())
	stats := usecase.NewStatsUseCase(nil, store, newTestLogger())
	return serveWithCookieTTL(t, chat, stats, cookieTTL)
}

func newTestServer(t *testing.T, chat usecase.ChatUseCase, stats usecase.StatsUseCase) *httptest.Server {
	t.Helper()
	return serveWithCookieTTL(t, chat, stats, time.Hour)
}

func serveWithCookieTTL(t *testing.T, chat usecase.ChatUseCase, stats usecase.StatsUseCase, cookieTTL time.Duration) *httptest.Server {
	t.Helper()
	srv := NewServer(chat, stats, NewSessionCookies(testSecret, false, cookieTTL),
		Options{Title: "This is a Chatbot App", RequestTimeout: 5 * time.Second}, newTestLogger())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestChatPage(t *testing.T) {
	ts := newEchoServer(t)
	browser := newBrowser(t)

	t.Run("GET / should render an empty chat with the footer", func(t *testing.T) {
		resp, err := browser.Get(ts.URL + "/")
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<title>This is a Chatbot App</title>")
		assert.Contains(t, body, "Powered by Bedrock and Claude")
		assert.NotContains(t, body, `class="msg user"`)
	})

	t.Run("POST /chat should redirect and show both messages", func(t *testing.T) {
		resp, err := browser.PostForm(ts.URL+"/chat", url.Values{"text": {"Hello"}})
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/", resp.Request.URL.Path, "form posts redirect back to the page")
		assert.Contains(t, body, `<div class="msg user">Hello</div>`)
		assert.Contains(t, body, `<div class="msg assistant">You said: Hello</div>`)
	})

	t.Run("POST /chat with empty text should show an error in place of a reply", func(t *testing.T) {
		resp, err := browser.PostForm(ts.URL+"/chat", url.Values{"text": {"   "}})
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "Please type a message first.")
	})

	t.Run("POST /reset should start over", func(t *testing.T) {
		resp, err := browser.PostForm(ts.URL+"/reset", nil)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.NotContains(t, body, "You said: Hello")
	})

	t.Run("user text should be escaped", func(t *testing.T) {
		resp, err := browser.PostForm(ts.URL+"/chat", url.Values{"text": {"<b>hi</b>"}})
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Contains(t, body, "&lt;b&gt;hi&lt;/b&gt;")
	})
}

func TestAPI(t *testing.T) {
	ts := newEchoServer(t)
	client := newBrowser(t)

	post := func(text string) (*http.Response, string) {
		resp, err := client.Post(ts.URL+"/api/v1/messages", "application/json", strings.NewReader(`{"text":`+jsonString(text)+`}`))
		require.NoError(t, err)
		return resp, readBody(t, resp)
	}

	resp, body := post("My name is Ada")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var out messageResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "You said: My name is Ada", out.Reply)
	assert.NotEmpty(t, out.SessionID)

	resp, body = post("And yours?")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	sessionID := out.SessionID

	t.Run("transcript lists every message in order", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/v1/transcript")
		require.NoError(t, err)
		var msgs []model.ChatMessage
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &msgs))
		require.Len(t, msgs, 4)
		assert.Equal(t, model.RoleUser, msgs[2].Role)
		assert.Equal(t, "And yours?", msgs[2].Content)
	})

	t.Run("memory exposes the unsummarized tail", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/v1/memory")
		require.NoError(t, err)
		var mem model.MemorySnapshot
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &mem))
		assert.Empty(t, mem.Summary)
		assert.Len(t, mem.Tail, 4)
	})

	t.Run("usage reports active sessions", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/v1/usage")
		require.NoError(t, err)
		var report usecase.UsageReport
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &report))
		assert.Equal(t, 1, report.ActiveSessions)
	})

	t.Run("invalid json is a 400", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/v1/messages", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		_ = readBody(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("DELETE session ends it and the next call starts fresh", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/session", nil)
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = readBody(t, resp)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, body := post("Hello again")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		assert.NotEqual(t, sessionID, out.SessionID)
	})
}

func TestAPI_ActiveSessionOutlivesCookieTTL(t *testing.T) {
	ts := newEchoServerWithCookieTTL(t, 2*time.Second)
	client := newBrowser(t)

	// seven turns half a second apart span well past the cookie TTL
	const turns = 7
	var first string
	for i := 0; i < turns; i++ {
		resp, err := client.Post(ts.URL+"/api/v1/messages", "application/json", strings.NewReader(`{"text":"still here"}`))
		require.NoError(t, err)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		var out messageResponse
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		if i == 0 {
			first = out.SessionID
		}
		require.Equal(t, first, out.SessionID, "turn %d switched sessions", i)
		time.Sleep(500 * time.Millisecond)
	}

	resp, err := client.Get(ts.URL + "/api/v1/transcript")
	require.NoError(t, err)
	var msgs []model.ChatMessage
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &msgs))
	assert.Len(t, msgs, 2*turns, "the whole conversation is still there")
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newEchoServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, "OK", readBody(t, resp))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	_ = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ---- error mapping ----

type failingChat struct{ err error }

func (f failingChat) StartSession(context.Context) (*model.ChatSession, error) {
	return model.NewChatSession("s-1"), nil
}
func (f failingChat) SendMessage(context.Context, string, string) (string, error) { return "", f.err }
func (f failingChat) Transcript(context.Context, string) ([]model.ChatMessage, error) {
	return nil, nil
}
func (f failingChat) Memory(context.Context, string) (model.MemorySnapshot, error) {
	return model.MemorySnapshot{}, nil
}
func (f failingChat) EndSession(context.Context, string) error { return nil }

func TestAPI_ErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrAuthentication, http.StatusBadGateway},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{domain.ErrRequestTimeout, http.StatusGatewayTimeout},
		{errors.Join(domain.ErrMemorySummarization, domain.ErrServiceUnavailable), http.StatusInternalServerError},
		{domain.ErrSessionBusy, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		ts := newTestServer(t, failingChat{err: tc.err}, nil)
		resp, err := http.Post(ts.URL+"/api/v1/messages", "application/json", strings.NewReader(`{"text":"Hello"}`))
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, tc.code, resp.StatusCode, "%v: %s", tc.err, body)
		assert.Contains(t, body, `"error"`)
	}
}

func TestSessionCookies(t *testing.T) {
	cookies := NewSessionCookies(testSecret, true, time.Hour)

	rec := httptest.NewRecorder()
	require.NoError(t, cookies.Mint(rec, "abc"))
	c := rec.Result().Cookies()[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	id, err := cookies.SessionID(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	other := NewSessionCookies("a-different-secret-of-some-length", true, time.Hour)
	_, err = other.SessionID(req)
	assert.Error(t, err, "tokens signed with another secret are rejected")

	_, err = cookies.SessionID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, errNoSession)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
