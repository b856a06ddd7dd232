package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Feed modes.
const (
	FeedModePoll  = "poll"
	FeedModeRelay = "relay"
)

// envFiles are loaded, when present, before environment overrides are read.
// Variables already set in the process environment take precedence.
var envFiles = []string{".env", ".env.dev"}

// Config holds all configuration for the application. It is not modified
// after Load returns.
type Config struct {
	Reddit   RedditConfig   `yaml:"reddit"`
	Feed     FeedConfig     `yaml:"feed"`
	Telegram TelegramConfig `yaml:"telegram"`

	// DesiredFlairs is the flair allow-list. Posts whose flair is not on it
	// are dropped, so an empty list forwards nothing unless AllowAllFlairs
	// is set.
	DesiredFlairs []string `yaml:"desired_flairs"`

	// AllowAllFlairs switches flair filtering off. It cannot be combined
	// with DesiredFlairs.
	AllowAllFlairs bool `yaml:"allow_all_flairs"`

	Caption  CaptionConfig  `yaml:"caption"`
	Media    MediaConfig    `yaml:"media"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Storage  StorageConfig  `yaml:"storage"`

	// Port is the HTTP server port.
	Port int `yaml:"port"`

	LogLevel string `yaml:"log_level"`
}

type RedditConfig struct {
	Subreddits   []string      `yaml:"subreddits"`
	UserAgent    string        `yaml:"user_agent"`
	BaseURL      string        `yaml:"base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ListingLimit int           `yaml:"listing_limit"`
}

type FeedConfig struct {
	// Mode is "poll" (listing poller) or "relay" (websocket relay).
	Mode            string        `yaml:"mode"`
	RelayURL        string        `yaml:"relay_url"`
	RestartCooldown time.Duration `yaml:"restart_cooldown"`
	SkipExisting    bool          `yaml:"skip_existing"`
}

type TelegramConfig struct {
	Token               string `yaml:"token"`
	ChatID              string `yaml:"chat_id"`
	APIURL              string `yaml:"api_url"`
	DisableNotification bool   `yaml:"disable_notification"`
}

type CaptionConfig struct {
	IncludeTitle bool   `yaml:"include_title"`
	LinkToPost   bool   `yaml:"link_to_post"`
	SignMessages bool   `yaml:"sign_messages"`
	ChannelName  string `yaml:"channel_name"`
	ChannelLink  string `yaml:"channel_link"`
}

type MediaConfig struct {
	PhotosOnly    bool   `yaml:"photos_only"`
	EmbedProvider string `yaml:"embed_provider"`
}

type DeliveryConfig struct {
	GroupLimit     int           `yaml:"group_limit"`
	ItemAttempts   int           `yaml:"item_attempts"`
	ItemBackoff    time.Duration `yaml:"item_backoff"`
	ItemMaxBackoff time.Duration `yaml:"item_max_backoff"`
	BatchAttempts  int           `yaml:"batch_attempts"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	Pacing         time.Duration `yaml:"pacing"`
}

type StorageConfig struct {
	// DatabaseURL is a postgres:// connection string or a SQLite file path.
	DatabaseURL string `yaml:"database_url"`

	// SeenRetention is how long seen entries are kept. Zero keeps them
	// forever. Once an entry is deleted the post counts as new again, so a
	// source that still lists it will forward it a second time. Set it well
	// above the age of the oldest post the feed can return.
	SeenRetention   time.Duration `yaml:"seen_retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// IsPostgres reports whether DatabaseURL points at PostgreSQL.
func (s StorageConfig) IsPostgres() bool {
	return strings.HasPrefix(s.DatabaseURL, "postgres://") || strings.HasPrefix(s.DatabaseURL, "postgresql://")
}

// SQLitePath returns DatabaseURL as a file path.
func (s StorageConfig) SQLitePath() string {
	return strings.TrimPrefix(s.DatabaseURL, "sqlite://")
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Reddit: RedditConfig{
			UserAgent:    "subreddit-relay/1.0",
			BaseURL:      "https://www.reddit.com",
			PollInterval: 30 * time.Second,
			ListingLimit: 100,
		},
		Feed: FeedConfig{
			Mode:            FeedModePoll,
			RestartCooldown: 30 * time.Second,
			SkipExisting:    true,
		},
		Telegram: TelegramConfig{
			APIURL: "https://api.telegram.org",
		},
		Caption: CaptionConfig{
			IncludeTitle: true,
			LinkToPost:   true,
		},
		Media: MediaConfig{
			EmbedProvider: "gfycat.com",
		},
		Delivery: DeliveryConfig{
			GroupLimit:     10,
			ItemAttempts:   3,
			ItemBackoff:    2 * time.Second,
			ItemMaxBackoff: 30 * time.Second,
			BatchAttempts:  2,
			BatchDelay:     4 * time.Second,
			Pacing:         time.Second,
		},
		Storage: StorageConfig{
			DatabaseURL:     "data/relay.db",
			CleanupInterval: time.Hour,
		},
		Port:     3000,
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, .env files and environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	e := &envReader{}

	e.setList("REDDIT_SUBREDDITS", &cfg.Reddit.Subreddits)
	e.setString("REDDIT_USER_AGENT", &cfg.Reddit.UserAgent)
	e.setString("REDDIT_BASE_URL", &cfg.Reddit.BaseURL)
	e.setDuration("REDDIT_POLL_INTERVAL", &cfg.Reddit.PollInterval)
	e.setInt("REDDIT_LISTING_LIMIT", &cfg.Reddit.ListingLimit)

	e.setString("FEED_MODE", &cfg.Feed.Mode)
	e.setString("FEED_RELAY_URL", &cfg.Feed.RelayURL)
	e.setDuration("FEED_RESTART_COOLDOWN", &cfg.Feed.RestartCooldown)
	e.setBool("FEED_SKIP_EXISTING", &cfg.Feed.SkipExisting)

	e.setString("TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token)
	e.setString("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	e.setString("TELEGRAM_API_URL", &cfg.Telegram.APIURL)
	e.setBool("TELEGRAM_DISABLE_NOTIFICATION", &cfg.Telegram.DisableNotification)

	e.setList("DESIRED_FLAIRS", &cfg.DesiredFlairs)
	e.setBool("ALLOW_ALL_FLAIRS", &cfg.AllowAllFlairs)

	e.setBool("CAPTION_INCLUDE_TITLE", &cfg.Caption.IncludeTitle)
	e.setBool("CAPTION_LINK_TO_POST", &cfg.Caption.LinkToPost)
	e.setBool("CAPTION_SIGN_MESSAGES", &cfg.Caption.SignMessages)
	e.setString("CHANNEL_NAME", &cfg.Caption.ChannelName)
	e.setString("CHANNEL_LINK", &cfg.Caption.ChannelLink)

	e.setBool("MEDIA_PHOTOS_ONLY", &cfg.Media.PhotosOnly)
	e.setString("MEDIA_EMBED_PROVIDER", &cfg.Media.EmbedProvider)

	e.setInt("DELIVERY_GROUP_LIMIT", &cfg.Delivery.GroupLimit)
	e.setInt("DELIVERY_ITEM_ATTEMPTS", &cfg.Delivery.ItemAttempts)
	e.setDuration("DELIVERY_ITEM_BACKOFF", &cfg.Delivery.ItemBackoff)
	e.setDuration("DELIVERY_ITEM_MAX_BACKOFF", &cfg.Delivery.ItemMaxBackoff)
	e.setInt("DELIVERY_BATCH_ATTEMPTS", &cfg.Delivery.BatchAttempts)
	e.setDuration("DELIVERY_BATCH_DELAY", &cfg.Delivery.BatchDelay)
	e.setDuration("DELIVERY_PACING", &cfg.Delivery.Pacing)

	e.setString("DATABASE_URL", &cfg.Storage.DatabaseURL)
	e.setDuration("SEEN_RETENTION", &cfg.Storage.SeenRetention)
	e.setDuration("CLEANUP_INTERVAL", &cfg.Storage.CleanupInterval)

	e.setInt("PORT", &cfg.Port)
	e.setString("LOG_LEVEL", &cfg.LogLevel)

	return errors.Join(e.errs...)
}

// envReader overlays set environment variables onto config fields,
// collecting parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = b
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = d
}

func (c *Config) validate() error {
	var errs []error

	if len(c.Reddit.Subreddits) == 0 {
		errs = append(errs, errors.New("at least one subreddit is required (REDDIT_SUBREDDITS)"))
	}

	switch c.Feed.Mode {
	case FeedModePoll:
	case FeedModeRelay:
		if c.Feed.RelayURL == "" {
			errs = append(errs, errors.New("FEED_RELAY_URL is required in relay mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feed mode %q", c.Feed.Mode))
	}

	if c.Delivery.GroupLimit < 2 || c.Delivery.GroupLimit > 10 {
		errs = append(errs, fmt.Errorf("delivery group limit must be between 2 and 10, got %d", c.Delivery.GroupLimit))
	}
	if c.Delivery.ItemAttempts < 1 || c.Delivery.BatchAttempts < 1 {
		errs = append(errs, errors.New("delivery attempts must be at least 1"))
	}

	if c.AllowAllFlairs && len(c.DesiredFlairs) > 0 {
		errs = append(errs, errors.New("ALLOW_ALL_FLAIRS cannot be combined with DESIRED_FLAIRS"))
	}

	if c.Caption.SignMessages && c.Caption.ChannelName == "" {
		errs = append(errs, errors.New("CHANNEL_NAME is required when signing messages"))
	}

	if c.Storage.SeenRetention > 0 && c.Storage.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be positive when SEEN_RETENTION is set"))
	}

	if c.Storage.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}

	return errors.Join(errs...)
}
