package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

const (
	defaultAPIURL = "https://api.telegram.org"
	parseModeHTML = "HTML"
)

// Chat actions shown to channel members while a send is in flight.
const (
	actionUploadPhoto    = "upload_photo"
	actionUploadVideo    = "upload_video"
	actionUploadDocument = "upload_document"
)

// Config configures a Client.
type Config struct {
	APIURL string
	Token  string

	// ChatID is the numeric id or @username of the destination channel.
	ChatID string

	DisableNotification bool
	Timeout             time.Duration
}

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// Retryable reports whether the request may succeed if repeated: rate
// limiting and server-side failures.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryDelay returns the wait requested by a rate-limited response.
func (e *APIError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// Client is a minimal Telegram Bot API client that posts media by URL to a
// single channel. It implements domain.Transport.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ domain.Transport      = (*Client)(nil)
	_ domain.RateLimitError = (*APIError)(nil)
)

// NewClient creates a new Bot API client. If cfg.APIURL is empty, it
// defaults to https://api.telegram.org.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("telegram chat id is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

type sendMediaRequest struct {
	ChatID              string `json:"chat_id"`
	Photo               string `json:"photo,omitempty"`
	Animation           string `json:"animation,omitempty"`
	Video               string `json:"video,omitempty"`
	Caption             string `json:"caption,omitempty"`
	ParseMode           string `json:"parse_mode,omitempty"`
	Height              int    `json:"height,omitempty"`
	SupportsStreaming   bool   `json:"supports_streaming,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

type inputMedia struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMediaGroupRequest struct {
	ChatID              string       `json:"chat_id"`
	Media               []inputMedia `json:"media"`
	DisableNotification bool         `json:"disable_notification,omitempty"`
}

type chatActionRequest struct {
	ChatID string `json:"chat_id"`
	Action string `json:"action"`
}

// apiResponse is the envelope of every Bot API response.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendPhoto posts a photo by URL.
func (c *Client) SendPhoto(ctx context.Context, mediaURL, caption string) error {
	c.sendChatAction(ctx, actionUploadPhoto)
	return c.call(ctx, "sendPhoto", c.mediaRequest(caption, func(r *sendMediaRequest) {
		r.Photo = mediaURL
	}), nil)
}

// SendAnimation posts a GIF or silent mp4 by URL.
func (c *Client) SendAnimation(ctx context.Context, mediaURL, caption string) error {
	c.sendChatAction(ctx, actionUploadDocument)
	return c.call(ctx, "sendAnimation", c.mediaRequest(caption, func(r *sendMediaRequest) {
		r.Animation = mediaURL
	}), nil)
}

// SendVideo posts a video by URL. A positive height is passed as a hint.
func (c *Client) SendVideo(ctx context.Context, mediaURL, caption string, height int) error {
	c.sendChatAction(ctx, actionUploadVideo)
	return c.call(ctx, "sendVideo", c.mediaRequest(caption, func(r *sendMediaRequest) {
		r.Video = mediaURL
		r.SupportsStreaming = true
		if height > 0 {
			r.Height = height
		}
	}), nil)
}

// SendMediaGroup posts items as one album. Only the first item with a
// caption shows it in the channel.
func (c *Client) SendMediaGroup(ctx context.Context, items []domain.GroupItem) error {
	if len(items) == 0 {
		return errors.New("empty media group")
	}

	body := sendMediaGroupRequest{
		ChatID:              c.cfg.ChatID,
		Media:               make([]inputMedia, 0, len(items)),
		DisableNotification: c.cfg.DisableNotification,
	}
	for _, item := range items {
		m := inputMedia{
			Type:  inputMediaType(item.Kind),
			Media: item.URL,
		}
		if item.Caption != "" {
			m.Caption = item.Caption
			m.ParseMode = parseModeHTML
		}
		body.Media = append(body.Media, m)
	}

	c.sendChatAction(ctx, actionUploadPhoto)
	return c.call(ctx, "sendMediaGroup", body, nil)
}

func inputMediaType(kind domain.MediaKind) string {
	switch kind {
	case domain.MediaVideo:
		return "video"
	case domain.MediaAnimation:
		return "document"
	default:
		return "photo"
	}
}

func (c *Client) mediaRequest(caption string, set func(*sendMediaRequest)) sendMediaRequest {
	r := sendMediaRequest{
		ChatID:              c.cfg.ChatID,
		DisableNotification: c.cfg.DisableNotification,
	}
	if caption != "" {
		r.Caption = caption
		r.ParseMode = parseModeHTML
	}
	set(&r)
	return r
}

// sendChatAction is best effort; a failure is logged and otherwise ignored.
func (c *Client) sendChatAction(ctx context.Context, action string) {
	body := chatActionRequest{ChatID: c.cfg.ChatID, Action: action}
	if err := c.call(ctx, "sendChatAction", body, nil); err != nil {
		c.logger.Debug("chat action failed", "action", action, "error", err)
	}
}

func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + "/bot" + c.cfg.Token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the token is part of the URL; keep it out of the error text
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: send request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Description: truncate(string(respBody), 200)}
		}
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if !envelope.OK || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			Description: envelope.Description,
		}
		if envelope.ErrorCode != 0 {
			apiErr.StatusCode = envelope.ErrorCode
		}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		if apiErr.Retryable() {
			c.logger.Warn("telegram temporarily unavailable", "method", method, "status", apiErr.StatusCode, "retry_after", apiErr.RetryAfter)
		}
		return apiErr
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// truncate returns the first n bytes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
