// Package firehose subscribes to a push relay of new submissions over a
// websocket. Reddit offers no such stream itself: the relay is a separately
// hosted service that sends frames of the form
//
//	{"seq": 42, "kind": "submission", "thing": {"kind": "t3", "data": {...}}}
//
// with "kind": "heartbeat" frames in between. seq is the resume cursor passed
// back as ?cursor= on reconnect. Without such a relay, use the listing poller.
package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/subreddit-relay/internal/domain"
	"github.com/blackmichael/subreddit-relay/internal/reddit"
)

const (
	cursorFeedName     = "relay"
	cursorSaveInterval = 5 * time.Second
	statsInterval      = 30 * time.Second
)

// Subscriber is a PostSource backed by a websocket relay that pushes new
// submissions as they are created.
type Subscriber struct {
	url        string
	subreddits map[string]struct{}
	names      []string
	cursors    domain.CursorStore
	logger     *slog.Logger

	// cursor is the last sequence number handled, resumed on reconnect.
	cursor int64
}

// NewSubscriber creates a new relay subscriber for the given subreddits.
// cursors may be nil, in which case the cursor is only kept in memory.
func NewSubscriber(relayURL string, subreddits []string, cursors domain.CursorStore, logger *slog.Logger) *Subscriber {
	wanted := make(map[string]struct{}, len(subreddits))
	for _, name := range subreddits {
		wanted[strings.ToLower(name)] = struct{}{}
	}
	return &Subscriber{
		url:        relayURL,
		subreddits: wanted,
		names:      subreddits,
		cursors:    cursors,
		logger:     logger,
	}
}

func (s *Subscriber) buildURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	for _, name := range s.names {
		q.Add("subreddit", name)
	}
	if s.cursor > 0 {
		q.Set("cursor", strconv.FormatInt(s.cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stream connects to the relay and hands matching submissions to handle
// until the connection drops or ctx is cancelled.
func (s *Subscriber) Stream(ctx context.Context, handle domain.PostHandler) error {
	if s.cursor == 0 && s.cursors != nil {
		cursor, err := s.cursors.GetCursor(ctx, cursorFeedName)
		if err != nil {
			s.logger.Warn("failed to load cursor, starting from live", "error", err)
		}
		s.cursor = cursor
	}

	wsURL, err := s.buildURL()
	if err != nil {
		return err
	}
	s.logger.Info("connecting to relay", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.logger.Info("connected to relay")

	var eventsReceived, postsMatched int64
	lastStatsLog := time.Now()
	lastCursorSave := time.Now()
	defer s.saveCursor(context.WithoutCancel(ctx))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}
		eventsReceived++

		if event.Kind == eventSubmission {
			if matched := s.handleSubmission(ctx, event, handle); matched {
				postsMatched++
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if event.Seq > s.cursor {
			s.cursor = event.Seq
		}

		if time.Since(lastStatsLog) >= statsInterval {
			s.logger.Info("relay stats",
				"events_received", eventsReceived,
				"posts_matched", postsMatched,
				"cursor", s.cursor,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= cursorSaveInterval {
			s.saveCursor(ctx)
			lastCursorSave = time.Now()
		}
	}
}

func (s *Subscriber) saveCursor(ctx context.Context) {
	if s.cursors == nil || s.cursor == 0 {
		return
	}
	if err := s.cursors.UpdateCursor(ctx, cursorFeedName, s.cursor); err != nil {
		s.logger.Error("failed to save cursor", "error", err)
	}
}

func (s *Subscriber) handleSubmission(ctx context.Context, event *relayEvent, handle domain.PostHandler) bool {
	post, err := reddit.DecodeThing(event.Thing)
	if err != nil {
		s.logger.Warn("failed to decode submission", "seq", event.Seq, "error", err)
		return false
	}
	if _, ok := s.subreddits[strings.ToLower(post.Source)]; !ok {
		return false
	}
	if err := handle(ctx, post); err != nil {
		s.logger.Error("failed to handle submission", "post_id", post.ID, "error", err)
	}
	return true
}
