package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedCall struct {
	Method string
	Body   map[string]any
}

// botServer records every call and answers with respond, or ok when respond
// returns an empty status.
type botServer struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(method string) (int, string)
}

func (b *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	method := parts[len(parts)-1]

	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.calls = append(b.calls, recordedCall{Method: method, Body: body})
	b.mu.Unlock()

	status, resp := 0, ""
	if b.respond != nil {
		status, resp = b.respond(method)
	}
	if status == 0 {
		status, resp = http.StatusOK, `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, resp)
}

func (b *botServer) methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Method
	}
	return out
}

func (b *botServer) last() recordedCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func newTestClient(t *testing.T, bot *botServer) *Client {
	t.Helper()
	srv := httptest.NewServer(bot)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIURL: srv.URL, Token: "123:abc", ChatID: "@relay", DisableNotification: true}, discardLogger())
	require.NoError(t, err)
	return c
}

func TestClient_SendPhoto(t *testing.T) {
	bot := &botServer{}
	c := newTestClient(t, bot)

	require.NoError(t, c.SendPhoto(context.Background(), "https://i.redd.it/a.jpg", "<b>hi</b>"))

	assert.Equal(t, []string{"sendChatAction", "sendPhoto"}, bot.methods())
	call := bot.last()
	assert.Equal(t, "@relay", call.Body["chat_id"])
	assert.Equal(t, "https://i.redd.it/a.jpg", call.Body["photo"])
	assert.Equal(t, "<b>hi</b>", call.Body["caption"])
	assert.Equal(t, "HTML", call.Body["parse_mode"])
	assert.Equal(t, true, call.Body["disable_notification"])
}

func TestClient_SendPhotoWithoutCaption(t *testing.T) {
	bot := &botServer{}
	c := newTestClient(t, bot)

	require.NoError(t, c.SendPhoto(context.Background(), "https://i.redd.it/a.jpg", ""))

	call := bot.last()
	assert.NotContains(t, call.Body, "caption")
	assert.NotContains(t, call.Body, "parse_mode")
}

func TestClient_SendVideo(t *testing.T) {
	bot := &botServer{}
	c := newTestClient(t, bot)

	require.NoError(t, c.SendVideo(context.Background(), "https://v.redd.it/x/DASH_720.mp4", "", 720))

	call := bot.last()
	assert.Equal(t, "sendVideo", call.Method)
	assert.Equal(t, "https://v.redd.it/x/DASH_720.mp4", call.Body["video"])
	assert.Equal(t, float64(720), call.Body["height"])
	assert.Equal(t, true, call.Body["supports_streaming"])
}

func TestClient_SendAnimation(t *testing.T) {
	bot := &botServer{}
	c := newTestClient(t, bot)

	require.NoError(t, c.SendAnimation(context.Background(), "https://i.redd.it/a.gif", "cap"))

	assert.Equal(t, []string{"sendChatAction", "sendAnimation"}, bot.methods())
	assert.Equal(t, "https://i.redd.it/a.gif", bot.last().Body["animation"])
}

func TestClient_SendMediaGroup(t *testing.T) {
	bot := &botServer{}
	c := newTestClient(t, bot)

	err := c.SendMediaGroup(context.Background(), []domain.GroupItem{
		{Kind: domain.MediaPhoto, URL: "https://i.redd.it/1.jpg", Caption: "first"},
		{Kind: domain.MediaPhoto, URL: "https://i.redd.it/2.jpg"},
	})
	require.NoError(t, err)

	call := bot.last()
	assert.Equal(t, "sendMediaGroup", call.Method)
	media, ok := call.Body["media"].([]any)
	require.True(t, ok)
	require.Len(t, media, 2)

	first := media[0].(map[string]any)
	assert.Equal(t, "photo", first["type"])
	assert.Equal(t, "first", first["caption"])
	assert.Equal(t, "HTML", first["parse_mode"])

	second := media[1].(map[string]any)
	assert.Equal(t, "https://i.redd.it/2.jpg", second["media"])
	assert.NotContains(t, second, "caption")
}

func TestClient_SendMediaGroupEmpty(t *testing.T) {
	bot := &botServer{}
	c := newTestClient(t, bot)

	assert.Error(t, c.SendMediaGroup(context.Background(), nil))
	assert.Empty(t, bot.methods())
}

func TestClient_APIError(t *testing.T) {
	bot := &botServer{respond: func(method string) (int, string) {
		if method == "sendPhoto" {
			return http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`
		}
		return 0, ""
	}}
	c := newTestClient(t, bot)

	err := c.SendPhoto(context.Background(), "https://i.redd.it/a.jpg", "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "sendPhoto", apiErr.Method)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.Equal(t, 7*time.Second, apiErr.RetryDelay())
	assert.True(t, apiErr.Retryable())
}

func TestClient_SequencerHonoursRetryAfter(t *testing.T) {
	var photoCalls atomic.Int32
	bot := &botServer{respond: func(method string) (int, string) {
		if method == "sendPhoto" && photoCalls.Add(1) == 1 {
			return http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`
		}
		return 0, ""
	}}
	c := newTestClient(t, bot)

	seq := domain.NewSequencer(c, domain.DeliverySettings{
		GroupLimit:     10,
		ItemAttempts:   3,
		ItemBackoff:    time.Millisecond,
		ItemMaxBackoff: 2 * time.Millisecond,
		BatchAttempts:  1,
	}, nil, discardLogger())

	start := time.Now()
	err := seq.Deliver(context.Background(), []domain.MediaRef{{Kind: domain.MediaPhoto, URL: "https://i.redd.it/a.jpg"}}, "cap")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.EqualValues(t, 2, photoCalls.Load())
}

func TestClient_BadRequestIsNotRetryable(t *testing.T) {
	bot := &botServer{respond: func(method string) (int, string) {
		if method == "sendVideo" {
			return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: failed to get HTTP URL content"}`
		}
		return 0, ""
	}}
	c := newTestClient(t, bot)

	err := c.SendVideo(context.Background(), "https://v.redd.it/x/DASH_1080.mp4", "", 1080)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Retryable())
	assert.Contains(t, err.Error(), "failed to get HTTP URL content")
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	bot := &botServer{respond: func(method string) (int, string) {
		return http.StatusBadGateway, "<html>bad gateway</html>"
	}}
	c := newTestClient(t, bot)

	err := c.SendPhoto(context.Background(), "https://i.redd.it/a.jpg", "")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable())
}

func TestClient_ChatActionFailureIsIgnored(t *testing.T) {
	bot := &botServer{respond: func(method string) (int, string) {
		if method == "sendChatAction" {
			return http.StatusInternalServerError, `{"ok":false,"error_code":500,"description":"oops"}`
		}
		return 0, ""
	}}
	c := newTestClient(t, bot)

	assert.NoError(t, c.SendPhoto(context.Background(), "https://i.redd.it/a.jpg", ""))
}

func TestClient_ErrorDoesNotLeakToken(t *testing.T) {
	c, err := NewClient(Config{APIURL: "http://127.0.0.1:1", Token: "123:secret", ChatID: "1", Timeout: time.Second}, discardLogger())
	require.NoError(t, err)

	err = c.SendPhoto(context.Background(), "https://i.redd.it/a.jpg", "")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestNewClient_RequiresTokenAndChat(t *testing.T) {
	_, err := NewClient(Config{ChatID: "1"}, discardLogger())
	assert.Error(t, err)

	_, err = NewClient(Config{Token: "t"}, discardLogger())
	assert.Error(t, err)
}
