package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TagFilter decides category-tag eligibility.
type TagFilter interface {
	Matches(tag string) bool
}

// PostClassifier resolves a post's kind and media refs.
type PostClassifier interface {
	Classify(post *PostRecord) ClassifiedPost
}

// Deliverer sends a classified post's media to the channel.
type Deliverer interface {
	Deliver(ctx context.Context, refs []MediaRef, caption string) error
}

// RelaySettings configures the orchestrator's outer loop.
type RelaySettings struct {
	// RestartCooldown is the wait before resubscribing to an interrupted
	// source.
	RestartCooldown time.Duration
}

// RelayService is the core domain service. It takes candidate posts one at a
// time through dedup, flair filtering, classification and delivery.
type RelayService struct {
	settings   RelaySettings
	seen       SeenStore
	filter     TagFilter
	classifier PostClassifier
	deliverer  Deliverer
	metrics    Metrics
	stats      Stats
	logger     *slog.Logger
}

// NewRelayService creates a RelayService. A nil metrics discards observations.
func NewRelayService(
	settings RelaySettings,
	seen SeenStore,
	filter TagFilter,
	classifier PostClassifier,
	deliverer Deliverer,
	metrics Metrics,
	logger *slog.Logger,
) *RelayService {
	if settings.RestartCooldown <= 0 {
		settings.RestartCooldown = 30 * time.Second
	}
	if metrics == nil {
		metrics = NopMetrics
	}
	return &RelayService{
		settings:   settings,
		seen:       seen,
		filter:     filter,
		classifier: classifier,
		deliverer:  deliverer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run consumes source until ctx is cancelled. Whenever the source's stream
// ends it is restarted after the configured cooldown.
func (s *RelayService) Run(ctx context.Context, source PostSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := source.Stream(ctx, s.HandlePost)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.metrics.FeedRestarted()
		s.logger.Error("post source interrupted, resubscribing",
			"error", err,
			"cooldown", s.settings.RestartCooldown,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.settings.RestartCooldown):
		}
	}
}

// HandlePost runs a single post through the pipeline and logs the result.
// It satisfies PostHandler.
func (s *RelayService) HandlePost(ctx context.Context, post *PostRecord) error {
	logger := s.logger.With(
		"pass_id", uuid.NewString(),
		"source", post.Source,
		"post_id", post.ID,
	)

	outcome, err := s.ProcessPost(ctx, post)
	if err != nil {
		logger.Error("post processing failed", "outcome", outcome, "error", err)
		return err
	}

	switch outcome {
	case OutcomeDelivered:
		logger.Info("post delivered", "title", truncate(post.Title, 100))
	case OutcomeSkippedSeen:
		logger.Debug("post already seen")
	default:
		logger.Info("post skipped", "outcome", outcome, "flair", post.CategoryTag)
	}
	return nil
}

// ProcessPost takes post through seen check, flair filter, classification
// and delivery. A post is marked seen before any send so a failed delivery
// is never repeated.
func (s *RelayService) ProcessPost(ctx context.Context, post *PostRecord) (outcome Outcome, err error) {
	defer func() {
		if outcome != "" {
			s.stats.add(outcome)
			s.metrics.PostProcessed(outcome)
		}
	}()

	key := post.Key()

	seen, err := s.seen.IsSeen(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check seen: %w", err)
	}
	if seen {
		return OutcomeSkippedSeen, nil
	}

	if !s.filter.Matches(post.CategoryTag) {
		return OutcomeFiltered, nil
	}

	classified := s.classifier.Classify(post)

	if err := s.seen.MarkSeen(ctx, key); err != nil {
		return "", fmt.Errorf("mark seen: %w", err)
	}

	if classified.Ineligible != NotIneligible {
		return OutcomeIneligible, nil
	}
	if !classified.Deliverable() {
		return OutcomeUnsupported, nil
	}

	if err := s.deliverer.Deliver(ctx, classified.Refs, classified.Caption); err != nil {
		return OutcomeFailed, fmt.Errorf("deliver %s post: %w", classified.Kind, err)
	}
	return OutcomeDelivered, nil
}

// Stats returns the outcome counts since startup.
func (s *RelayService) Stats() map[Outcome]int64 {
	return s.stats.Snapshot()
}

// StartCleanupJob runs a background loop that removes seen entries older than
// maxAge. It runs immediately on start and then repeats at the given
// interval. It blocks until ctx is cancelled. A deleted post is no longer
// known to be seen and is forwarded again if a source re-emits it.
func (s *RelayService) StartCleanupJob(ctx context.Context, interval time.Duration, maxAge time.Duration) {
	s.runCleanup(ctx, maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup(ctx, maxAge)
		}
	}
}

func (s *RelayService) runCleanup(ctx context.Context, maxAge time.Duration) {
	deleted, err := s.seen.DeleteSeenBefore(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		s.logger.Error("seen cleanup failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("seen cleanup complete", "deleted", deleted)
	}
}

// truncate returns the first n runes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
