// Package app assembles the relay's components from configuration. It is
// shared by the server and the publish CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/blackmichael/subreddit-relay/internal/config"
	"github.com/blackmichael/subreddit-relay/internal/domain"
	"github.com/blackmichael/subreddit-relay/internal/firehose"
	"github.com/blackmichael/subreddit-relay/internal/postgres"
	"github.com/blackmichael/subreddit-relay/internal/reddit"
	"github.com/blackmichael/subreddit-relay/internal/sqlite"
	"github.com/blackmichael/subreddit-relay/internal/telegram"
)

// Store is the persistence the relay needs: seen posts and feed cursors.
type Store interface {
	domain.SeenStore
	domain.CursorStore
	io.Closer
}

// NewLogger returns the JSON logger used by every command.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// OpenStore opens PostgreSQL for a postgres:// URL and SQLite otherwise.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.IsPostgres() {
		repo, err := postgres.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return repo, nil
	}

	store, err := sqlite.Open(cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

// NewTransport creates the Telegram client for the configured channel.
func NewTransport(cfg *config.Config, logger *slog.Logger) (*telegram.Client, error) {
	return telegram.NewClient(telegram.Config{
		APIURL:              cfg.Telegram.APIURL,
		Token:               cfg.Telegram.Token,
		ChatID:              cfg.Telegram.ChatID,
		DisableNotification: cfg.Telegram.DisableNotification,
	}, logger)
}

// NewPoller creates the reddit listing poller.
func NewPoller(cfg *config.Config, logger *slog.Logger) *reddit.Poller {
	return reddit.NewPoller(reddit.PollerConfig{
		BaseURL:      cfg.Reddit.BaseURL,
		UserAgent:    cfg.Reddit.UserAgent,
		Subreddits:   cfg.Reddit.Subreddits,
		Limit:        cfg.Reddit.ListingLimit,
		Interval:     cfg.Reddit.PollInterval,
		SkipExisting: cfg.Feed.SkipExisting,
	}, logger)
}

// NewSource returns the post source selected by the feed mode.
func NewSource(cfg *config.Config, cursors domain.CursorStore, logger *slog.Logger) domain.PostSource {
	if cfg.Feed.Mode == config.FeedModeRelay {
		return firehose.NewSubscriber(cfg.Feed.RelayURL, cfg.Reddit.Subreddits, cursors, logger)
	}
	return NewPoller(cfg, logger)
}

// NewTagFilter returns the flair allow-list, or a filter accepting every post
// when flair filtering is switched off.
func NewTagFilter(cfg *config.Config) (domain.TagFilter, error) {
	if cfg.AllowAllFlairs {
		return domain.AllowAllTags{}, nil
	}
	filter, err := domain.NewFlairFilter(cfg.DesiredFlairs)
	if err != nil {
		return nil, fmt.Errorf("compile flair filter: %w", err)
	}
	return filter, nil
}

// NewRelayService wires the pipeline around the given store and transport.
func NewRelayService(
	cfg *config.Config,
	seen domain.SeenStore,
	transport domain.Transport,
	metrics domain.Metrics,
	logger *slog.Logger,
) (*domain.RelayService, error) {
	filter, err := NewTagFilter(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.AllowAllFlairs && len(cfg.DesiredFlairs) == 0 {
		logger.Warn("no desired flairs configured; every post will be filtered")
	}

	captions := domain.NewCaptionFormatter(domain.CaptionSettings{
		IncludeTitle: cfg.Caption.IncludeTitle,
		LinkToPost:   cfg.Caption.LinkToPost,
		SignMessages: cfg.Caption.SignMessages,
		ChannelName:  cfg.Caption.ChannelName,
		ChannelLink:  cfg.Caption.ChannelLink,
		PostBaseURL:  cfg.Reddit.BaseURL,
	})

	classifierSettings := domain.DefaultClassifierSettings()
	classifierSettings.PhotosOnly = cfg.Media.PhotosOnly
	classifierSettings.EmbedProvider = cfg.Media.EmbedProvider
	classifier := domain.NewClassifier(classifierSettings, captions)

	sequencer := domain.NewSequencer(transport, domain.DeliverySettings{
		GroupLimit:     cfg.Delivery.GroupLimit,
		ItemAttempts:   cfg.Delivery.ItemAttempts,
		ItemBackoff:    cfg.Delivery.ItemBackoff,
		ItemMaxBackoff: cfg.Delivery.ItemMaxBackoff,
		BatchAttempts:  cfg.Delivery.BatchAttempts,
		BatchDelay:     cfg.Delivery.BatchDelay,
		Pacing:         cfg.Delivery.Pacing,
	}, metrics, logger)

	return domain.NewRelayService(
		domain.RelaySettings{RestartCooldown: cfg.Feed.RestartCooldown},
		seen,
		filter,
		classifier,
		sequencer,
		metrics,
		logger,
	), nil
}
