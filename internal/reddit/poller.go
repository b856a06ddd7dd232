package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "subreddit-relay/1.0"

	// recentCapacity matches the window reddit clients keep to dedupe
	// overlapping listing pages.
	recentCapacity = 301
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	BaseURL    string
	UserAgent  string
	Subreddits []string

	// Limit is the listing page size (max 100).
	Limit int

	// Interval is the wait between listing fetches.
	Interval time.Duration

	// SkipExisting drops everything on the first fetch so only content
	// posted after startup is emitted.
	SkipExisting bool
}

// Poller is a PostSource that polls the combined "new" listing of a set of
// subreddits.
type Poller struct {
	cfg        PollerConfig
	httpClient *http.Client
	logger     *slog.Logger

	recent *recentSet
	primed bool
}

// NewPoller creates a Poller.
func NewPoller(cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Limit <= 0 || cfg.Limit > 100 {
		cfg.Limit = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Poller{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		recent: newRecentSet(recentCapacity),
	}
}

// Stream polls until a fetch fails or ctx is cancelled. Posts are handed to
// handle oldest first. The skip-existing window applies only to the first
// successful fetch of the Poller's lifetime.
func (p *Poller) Stream(ctx context.Context, handle domain.PostHandler) error {
	p.logger.Info("polling subreddits", "subreddits", p.cfg.Subreddits, "interval", p.cfg.Interval)

	for {
		posts, err := p.FetchNew(ctx)
		if err != nil {
			return fmt.Errorf("fetch new posts: %w", err)
		}

		emitted := 0
		for i := len(posts) - 1; i >= 0; i-- {
			post := posts[i]
			fullname := submissionKind + "_" + post.ID
			if !p.recent.Add(fullname) {
				continue
			}
			if !p.primed && p.cfg.SkipExisting {
				continue
			}
			emitted++
			if err := handle(ctx, post); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if !p.primed {
			p.logger.Info("listing primed", "existing_posts", len(posts), "skipped", p.cfg.SkipExisting)
			p.primed = true
		} else if emitted > 0 {
			p.logger.Debug("listing poll", "new_posts", emitted)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.Interval):
		}
	}
}

// FetchNew returns the newest submissions across the configured subreddits,
// newest first.
func (p *Poller) FetchNew(ctx context.Context) ([]*domain.PostRecord, error) {
	if len(p.cfg.Subreddits) == 0 {
		return nil, errors.New("no subreddits configured")
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.cfg.Limit))
	q.Set("raw_json", "1")

	path := "/r/" + strings.Join(p.cfg.Subreddits, "+") + "/new.json"
	return p.getListing(ctx, path, q)
}

// FetchByID looks up a single submission by its id (without the t3_
// prefix).
func (p *Poller) FetchByID(ctx context.Context, id string) (*domain.PostRecord, error) {
	id = strings.TrimPrefix(id, submissionKind+"_")

	q := url.Values{}
	q.Set("raw_json", "1")

	posts, err := p.getListing(ctx, "/by_id/"+submissionKind+"_"+id+".json", q)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("submission %s not found", id)
	}
	return posts[0], nil
}

func (p *Poller) getListing(ctx context.Context, path string, query url.Values) ([]*domain.PostRecord, error) {
	var envelope thing
	if err := p.get(ctx, path, query, &envelope); err != nil {
		return nil, err
	}

	var l listing
	if err := json.Unmarshal(envelope.Data, &l); err != nil {
		return nil, fmt.Errorf("unmarshal listing: %w", err)
	}

	posts := make([]*domain.PostRecord, 0, len(l.Children))
	for _, child := range l.Children {
		if child.Kind != submissionKind {
			continue
		}
		post, err := DecodeSubmission(child.Data)
		if err != nil {
			p.logger.Warn("skipping undecodable submission", "error", err)
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (p *Poller) get(ctx context.Context, path string, query url.Values, result any) error {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
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
