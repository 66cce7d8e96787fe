package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// AllowedUserIDs restricts who may run the intake flow; empty allows everyone.
	AllowedUserIDs []int64 `yaml:"allowed_user_ids" envconfig:"TELEGRAM_ALLOWED_USER_IDS"`
	RunMode        string  `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// SecretToken is echoed by Telegram in every webhook request.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text and photo messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// CommerceConfig describes how to reach the WooCommerce store.
type CommerceConfig struct {
	URL            string `yaml:"url" envconfig:"WC_URL"`
	ConsumerKey    string `yaml:"consumer_key" envconfig:"WC_KEY"`
	ConsumerSecret string `yaml:"consumer_secret" envconfig:"WC_SECRET"`
	// QueryStringAuth sends credentials as query parameters instead of HTTP Basic.
	QueryStringAuth bool   `yaml:"query_string_auth" envconfig:"WC_QUERY_STRING_AUTH"`
	MediaPath       string `yaml:"media_path" envconfig:"WC_MEDIA_PATH"`
	// MediaRef selects how uploaded images are referenced by products: "id" or "src".
	MediaRef       string `yaml:"media_ref" envconfig:"WC_MEDIA_REF"`
	MediaUser      string `yaml:"media_user" envconfig:"WP_MEDIA_USER"`
	MediaPassword  string `yaml:"media_password" envconfig:"WP_MEDIA_PASSWORD"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"WC_TIMEOUT_SECONDS"`
}

// IntakeConfig selects the conversation variant.
type IntakeConfig struct {
	// AskPrice is on unless set to false explicitly.
	AskPrice          *bool `yaml:"ask_price" envconfig:"INTAKE_ASK_PRICE"`
	CategoryMenu      bool  `yaml:"category_menu" envconfig:"INTAKE_CATEGORY_MENU"`
	SessionTTLMinutes int   `yaml:"session_ttl_minutes" envconfig:"INTAKE_SESSION_TTL_MINUTES"`
}

// PriceStep reports whether the dialog asks for a price.
func (i IntakeConfig) PriceStep() bool {
	return i.AskPrice == nil || *i.AskPrice
}

// DatabaseConfig holds the optional journal database settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a journal database was configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// MetricsConfig configures the Prometheus endpoint; empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

const (
	// MediaRefID references uploaded images by attachment id.
	MediaRefID = "id"
	// MediaRefSrc references uploaded images by their public URL.
	MediaRefSrc = "src"

	defaultMediaPath         = "/wp-json/wp/v2/media"
	defaultCommerceTimeout   = 30
	defaultSessionTTLMinutes = 60
)

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Commerce  CommerceConfig  `yaml:"commerce"`
	Intake    IntakeConfig    `yaml:"intake"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads configuration from a YAML file and environment variables.
// An empty path skips the file and relies on the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Parse(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse fills cfg from the YAML file (if any) and the environment without validating.
func Parse(path string, cfg *Config) error {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeCommerce(&cfg.Commerce); err != nil {
		return err
	}

	if cfg.Intake.SessionTTLMinutes < 0 {
		return fmt.Errorf("intake.session_ttl_minutes must be >= 0")
	}
	if cfg.Intake.SessionTTLMinutes == 0 {
		cfg.Intake.SessionTTLMinutes = defaultSessionTTLMinutes
	}
	if cfg.Intake.AskPrice == nil {
		askPrice := true
		cfg.Intake.AskPrice = &askPrice
	}

	if cfg.Database.Enabled() {
		if err := NormalizeDatabase(&cfg.Database); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeDatabase applies database defaults. It fails when no host is set,
// so commands that need the database can validate it on its own.
func NormalizeDatabase(d *DatabaseConfig) error {
	if !d.Enabled() {
		return fmt.Errorf("database.host is required")
	}
	if d.Port == "" {
		d.Port = "5432"
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxConnections <= 0 {
		d.MaxConnections = 5
	}
	if d.MigrationsDir == "" {
		d.MigrationsDir = "migrations"
	}
	return nil
}

func normalizeCommerce(c *CommerceConfig) error {
	raw := strings.TrimRight(strings.TrimSpace(c.URL), "/")
	if raw == "" {
		return fmt.Errorf("commerce.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid commerce.url %q", c.URL)
	}
	c.URL = raw
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return fmt.Errorf("commerce.consumer_key and commerce.consumer_secret are required")
	}

	if c.MediaPath == "" {
		c.MediaPath = defaultMediaPath
	}
	if !strings.HasPrefix(c.MediaPath, "/") {
		c.MediaPath = "/" + c.MediaPath
	}

	ref := strings.ToLower(strings.TrimSpace(c.MediaRef))
	switch ref {
	case "":
		ref = MediaRefID
	case MediaRefID, MediaRefSrc:
	default:
		return fmt.Errorf("invalid commerce.media_ref %q; allowed: id, src", c.MediaRef)
	}
	c.MediaRef = ref

	if c.MediaUser == "" {
		c.MediaUser = c.ConsumerKey
		if c.MediaPassword == "" {
			c.MediaPassword = c.ConsumerSecret
		}
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("commerce.timeout_seconds must be >= 0")
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultCommerceTimeout
	}
	return nil
}
