package domain

import (
	"context"
	"time"
)

// SeenStore records which posts have already been processed.
type SeenStore interface {
	// IsSeen reports whether the post has been marked seen.
	IsSeen(ctx context.Context, key SeenKey) (bool, error)

	// MarkSeen records the post as seen. Marking an already seen post is a
	// no-op.
	MarkSeen(ctx context.Context, key SeenKey) error

	// DeleteSeenBefore removes entries recorded before the cutoff. Returns the
	// number of entries deleted.
	DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CursorStore persists a feed's resume position across restarts.
type CursorStore interface {
	// GetCursor returns the saved cursor for feed, or 0 if none was saved.
	GetCursor(ctx context.Context, feed string) (int64, error)
	UpdateCursor(ctx context.Context, feed string, cursor int64) error
}

// GroupItem is a single entry of a grouped media send.
type GroupItem struct {
	Kind    MediaKind
	URL     string
	Caption string
}

// Transport sends media to the destination channel. Every call is a single
// attempt; retries are the Sequencer's job.
type Transport interface {
	SendPhoto(ctx context.Context, url, caption string) error
	SendAnimation(ctx context.Context, url, caption string) error
	SendVideo(ctx context.Context, url, caption string, height int) error
	SendMediaGroup(ctx context.Context, items []GroupItem) error
}

// RateLimitError is implemented by transport errors that carry the wait the
// channel asked for before the request may be repeated.
type RateLimitError interface {
	error
	RetryDelay() time.Duration
}

// PostHandler consumes one candidate post. Returning an error does not stop
// the source.
type PostHandler func(ctx context.Context, post *PostRecord) error

// PostSource is a blocking producer of candidate posts. Stream calls handle
// once per post, in emission order, and returns when the underlying
// connection fails or ctx is cancelled. Stream may be called again after it
// returns.
type PostSource interface {
	Stream(ctx context.Context, handle PostHandler) error
}

// Metrics receives pipeline observations.
type Metrics interface {
	PostProcessed(outcome Outcome)
	SendAttempted(method string, err error)
	FeedRestarted()
}

type nopMetrics struct{}

func (nopMetrics) PostProcessed(Outcome)       {}
func (nopMetrics) SendAttempted(string, error) {}
func (nopMetrics) FeedRestarted()              {}

// NopMetrics discards every observation.
var NopMetrics Metrics = nopMetrics{}
