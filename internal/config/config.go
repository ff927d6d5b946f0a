package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// ErrConfig marks configuration problems that must stop the process at startup.
var ErrConfig = errors.New("invalid configuration")

var defaultFiles = []string{"./config.hcl", "./config.local.hcl", "$HOME/.config/feedrelay/config.hcl"}

type Config struct {
	TelegramBotToken string `hcl:"telegram_bot_token" env:"TG_BOT_TOKEN" required:"true"`
	ChannelID        string `hcl:"channel_id" env:"CHANNEL_ID" required:"true"`
	AdminChatID      int64  `hcl:"admin_chat_id" env:"ADMIN_CHAT_ID"`

	FeedURL      string        `hcl:"rss_url" env:"RSS_URL" default:"https://www.espn.com/espn/rss/nba/news"`
	PollInterval int           `hcl:"poll_interval" env:"POLL_INTERVAL" default:"300"`
	PostDelay    time.Duration `hcl:"post_delay" env:"POST_DELAY" default:"1s"`
	FeedParser   string        `hcl:"feed_parser" env:"FEED_PARSER" default:"gofeed"`
	FetchTimeout time.Duration `hcl:"fetch_timeout" env:"FETCH_TIMEOUT" default:"30s"`

	DatabaseURL      string        `hcl:"database_url" env:"DATABASE_URL"`
	DBPath           string        `hcl:"db_path" env:"DB_PATH" default:"seen_news.db"`
	DBConnectTimeout time.Duration `hcl:"db_connect_timeout" env:"DB_CONNECT_TIMEOUT" default:"30s"`

	UntitledText string `hcl:"untitled_text" env:"UNTITLED_TEXT" default:"بدون عنوان"`
	ReadMoreText string `hcl:"read_more_text" env:"READ_MORE_TEXT" default:"اقرأ المزيد"`
	BodyLimit    int    `hcl:"body_limit" env:"BODY_LIMIT" default:"700"`

	AIType    string        `hcl:"ai_type" env:"AI_TYPE"`
	AIBaseURL string        `hcl:"ai_base_url" env:"AI_BASE_URL"`
	AIKey     string        `hcl:"ai_key" env:"AI_KEY"`
	AIPrompt  string        `hcl:"ai_prompt" env:"AI_PROMPT" default:"Summarize the following news article in two or three sentences."`
	AIModel   string        `hcl:"ai_model" env:"AI_MODEL" default:"llama3"`
	AITimeout time.Duration `hcl:"ai_timeout" env:"AI_TIMEOUT" default:"2m"`

	HTTPAddr string `hcl:"http_addr" env:"HTTP_ADDR" default:"127.0.0.1:8088"`
	LogLevel string `hcl:"log_level" env:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment and the optional HCL
// files and validates it. Any returned error wraps ErrConfig.
func Load() (Config, error) {
	return load(defaultFiles)
}

func load(files []string) (Config, error) {
	var cfg Config

	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return fmt.Errorf("%w: TG_BOT_TOKEN is empty", ErrConfig)
	}

	if !validChannel(c.ChannelID) {
		return fmt.Errorf("%w: CHANNEL_ID %q must be @username or a numeric chat id", ErrConfig, c.ChannelID)
	}

	if c.FeedURL == "" {
		return fmt.Errorf("%w: RSS_URL is empty", ErrConfig)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL must be positive, got %d", ErrConfig, c.PollInterval)
	}

	if c.PostDelay < 0 {
		return fmt.Errorf("%w: POST_DELAY must not be negative", ErrConfig)
	}

	if c.BodyLimit <= 0 {
		return fmt.Errorf("%w: BODY_LIMIT must be positive, got %d", ErrConfig, c.BodyLimit)
	}

	switch c.FeedParser {
	case "gofeed", "rss":
	default:
		return fmt.Errorf("%w: unknown FEED_PARSER %q", ErrConfig, c.FeedParser)
	}

	switch c.AIType {
	case "":
	case "openai":
		if c.AIKey == "" {
			return fmt.Errorf("%w: AI_KEY is required when AI_TYPE is \"openai\"", ErrConfig)
		}
	case "ollama":
		if c.AIBaseURL == "" {
			return fmt.Errorf("%w: AI_BASE_URL is required when AI_TYPE is \"ollama\"", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown AI_TYPE %q", ErrConfig, c.AIType)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

func (c Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// UsePostgres reports whether the networked ledger is configured.
func (c Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: LOG_LEVEL: %v", ErrConfig, err)
	}
	return level, nil
}

func validChannel(id string) bool {
	if len(id) > 1 && strings.HasPrefix(id, "@") {
		return true
	}
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}
