package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ErrDeliveryFailed is returned when a send exhausts its retries.
var ErrDeliveryFailed = errors.New("delivery failed")

// Transport method names used in logs and metrics.
const (
	MethodPhoto      = "sendPhoto"
	MethodAnimation  = "sendAnimation"
	MethodVideo      = "sendVideo"
	MethodMediaGroup = "sendMediaGroup"
)

// DeliverySettings configures batching, retries and pacing.
type DeliverySettings struct {
	// GroupLimit is the largest number of items in one grouped send.
	GroupLimit int

	// ItemAttempts bounds the attempts of a single-item send. The delay
	// between attempts starts at ItemBackoff and doubles up to ItemMaxBackoff.
	ItemAttempts   int
	ItemBackoff    time.Duration
	ItemMaxBackoff time.Duration

	// BatchAttempts bounds the attempts of a grouped send, spaced by BatchDelay.
	BatchAttempts int
	BatchDelay    time.Duration

	// Pacing separates consecutive sends of one post.
	Pacing time.Duration
}

// DefaultDeliverySettings returns the limits the channel is known to accept.
func DefaultDeliverySettings() DeliverySettings {
	return DeliverySettings{
		GroupLimit:     10,
		ItemAttempts:   3,
		ItemBackoff:    2 * time.Second,
		ItemMaxBackoff: 30 * time.Second,
		BatchAttempts:  2,
		BatchDelay:     4 * time.Second,
		Pacing:         time.Second,
	}
}

func normalizeDeliverySettings(s DeliverySettings) DeliverySettings {
	if s.GroupLimit < 2 {
		s.GroupLimit = 2
	}
	if s.ItemAttempts < 1 {
		s.ItemAttempts = 1
	}
	if s.BatchAttempts < 1 {
		s.BatchAttempts = 1
	}
	if s.ItemMaxBackoff < s.ItemBackoff {
		s.ItemMaxBackoff = s.ItemBackoff
	}
	return s
}

// Sequencer drives the ordered send sequence for a classified post.
type Sequencer struct {
	transport Transport
	settings  DeliverySettings
	metrics   Metrics
	logger    *slog.Logger

	itemPolicy  retrypolicy.RetryPolicy[any]
	batchPolicy retrypolicy.RetryPolicy[any]
}

// NewSequencer creates a Sequencer sending through transport.
func NewSequencer(transport Transport, settings DeliverySettings, metrics Metrics, logger *slog.Logger) *Sequencer {
	settings = normalizeDeliverySettings(settings)
	if metrics == nil {
		metrics = NopMetrics
	}

	item := retrypolicy.NewBuilder[any]().
		WithMaxRetries(settings.ItemAttempts - 1).
		WithDelayFunc(rateLimitDelay)
	if settings.ItemBackoff > 0 {
		item = item.WithBackoff(settings.ItemBackoff, settings.ItemMaxBackoff)
	}

	batch := retrypolicy.NewBuilder[any]().
		WithMaxRetries(settings.BatchAttempts - 1).
		WithDelayFunc(rateLimitDelay)
	if settings.BatchDelay > 0 {
		batch = batch.WithDelay(settings.BatchDelay)
	}

	return &Sequencer{
		transport:   transport,
		settings:    settings,
		metrics:     metrics,
		logger:      logger,
		itemPolicy:  item.Build(),
		batchPolicy: batch.Build(),
	}
}

// Deliver sends refs in order with caption attached to exactly one item.
// The first failure that exhausts its retries aborts the sequence; items
// already accepted by the channel stay delivered.
func (s *Sequencer) Deliver(ctx context.Context, refs []MediaRef, caption string) error {
	if len(refs) == 0 {
		return fmt.Errorf("%w: no media to send", ErrDeliveryFailed)
	}

	d := &delivery{seq: s}

	if len(refs) == 1 {
		return d.sendItem(ctx, refs[0], caption)
	}

	static, animated := partitionRefs(refs, caption)

	// Animations cannot be grouped. With no static items the caption trails
	// the last animation; otherwise it rides on the first static item.
	for i, u := range animated {
		itemCaption := ""
		if len(static) == 0 && i == len(animated)-1 {
			itemCaption = caption
		}
		if err := d.sendItem(ctx, MediaRef{Kind: MediaAnimation, URL: u}, itemCaption); err != nil {
			return err
		}
	}

	for start := 0; start < len(static); start += s.settings.GroupLimit {
		end := min(start+s.settings.GroupLimit, len(static))
		if err := d.sendBatch(ctx, static[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// delivery tracks the state of one Deliver call.
type delivery struct {
	seq   *Sequencer
	sends int
}

// pace waits between consecutive sends.
func (d *delivery) pace(ctx context.Context) error {
	d.sends++
	if d.sends == 1 {
		return nil
	}
	return sleepContext(ctx, d.seq.settings.Pacing)
}

func (d *delivery) sendItem(ctx context.Context, ref MediaRef, caption string) error {
	if err := d.pace(ctx); err != nil {
		return err
	}

	s := d.seq
	method := methodFor(ref.Kind)
	attempt := 0

	_, err := failsafe.With(s.itemPolicy).WithContext(ctx).Get(func() (any, error) {
		attempt++
		current := ref
		if attempt > 1 && ref.Kind == MediaVideo {
			current = lowerVideoVariant(ref, attempt-1)
		}

		err := s.send(ctx, current, caption)
		s.metrics.SendAttempted(method, err)
		if err != nil {
			s.logger.Warn("send attempt failed",
				"method", method,
				"url", current.URL,
				"attempt", attempt,
				"error", err,
			)
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: %s %s after %d attempts: %w", ErrDeliveryFailed, method, ref.URL, attempt, err)
	}
	return nil
}

func (d *delivery) sendBatch(ctx context.Context, items []GroupItem) error {
	if len(items) == 1 {
		return d.sendItem(ctx, MediaRef{Kind: items[0].Kind, URL: items[0].URL}, items[0].Caption)
	}

	if err := d.pace(ctx); err != nil {
		return err
	}

	s := d.seq
	attempt := 0

	_, err := failsafe.With(s.batchPolicy).WithContext(ctx).Get(func() (any, error) {
		attempt++
		err := s.transport.SendMediaGroup(ctx, items)
		s.metrics.SendAttempted(MethodMediaGroup, err)
		if err != nil {
			s.logger.Warn("media group attempt failed",
				"items", len(items),
				"attempt", attempt,
				"error", err,
			)
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: %s of %d items after %d attempts: %w", ErrDeliveryFailed, MethodMediaGroup, len(items), attempt, err)
	}
	return nil
}

// rateLimitDelay waits as long as the channel asked when the last attempt was
// rate limited. Otherwise it returns -1 so the policy's own delay applies.
func rateLimitDelay(exec failsafe.ExecutionAttempt[any]) time.Duration {
	var rl RateLimitError
	if errors.As(exec.LastError(), &rl) && rl.RetryDelay() > 0 {
		return rl.RetryDelay()
	}
	return -1
}

func (s *Sequencer) send(ctx context.Context, ref MediaRef, caption string) error {
	switch ref.Kind {
	case MediaPhoto:
		return s.transport.SendPhoto(ctx, ref.URL, caption)
	case MediaAnimation:
		return s.transport.SendAnimation(ctx, ref.URL, caption)
	case MediaVideo:
		return s.transport.SendVideo(ctx, ref.URL, caption, ref.Height)
	default:
		return fmt.Errorf("unknown media kind %q", ref.Kind)
	}
}

func methodFor(k MediaKind) string {
	switch k {
	case MediaPhoto:
		return MethodPhoto
	case MediaAnimation:
		return MethodAnimation
	case MediaVideo:
		return MethodVideo
	default:
		return string(k)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
