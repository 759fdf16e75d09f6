package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Delivery sinks accepted by DELIVERY.
const (
	DeliveryNone     = ""
	DeliveryTelegram = "telegram"
	DeliveryS3       = "s3"
)

// Config holds the process configuration read from the environment.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Address of the status server (metrics, sessions, events). Empty disables it.
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	OutputDir  string `envconfig:"OUTPUT_DIR" default:"recordings"`
	FilePrefix string `envconfig:"FILE_PREFIX" default:"TK"`
	RosterFile string `envconfig:"ROSTER_FILE" default:"users.txt"`

	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	AutomaticInterval  time.Duration `envconfig:"AUTOMATIC_INTERVAL" default:"5m"`
	ConnectionCooldown time.Duration `envconfig:"CONNECTION_COOLDOWN" default:"1m"`
	ChunkIdleTimeout   time.Duration `envconfig:"CHUNK_IDLE_TIMEOUT" default:"30s"`
	// MaxDuration bounds a single recording. Zero records until the broadcast ends.
	MaxDuration time.Duration `envconfig:"MAX_DURATION" default:"0s"`

	Proxy      string `envconfig:"PROXY"`
	FFmpegPath string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	KeepRaw    bool   `envconfig:"KEEP_RAW" default:"false"`

	Delivery    string `envconfig:"DELIVERY"`
	SecretsFile string `envconfig:"SECRETS_FILE" default:"secrets.toml"`
}

// Secrets holds credentials that are kept out of the environment by default.
type Secrets struct {
	TikTok   TikTokSecrets   `toml:"tiktok"`
	Telegram TelegramSecrets `toml:"telegram"`
	S3       S3Secrets       `toml:"s3"`
}

type TikTokSecrets struct {
	Cookies map[string]string `toml:"cookies"`
}

type TelegramSecrets struct {
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"`
}

type S3Secrets struct {
	Endpoint        string `toml:"endpoint"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Prefix          string `toml:"prefix"`
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a validated Config from environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.FFmpegPath == "" {
		return errors.New("FFMPEG_PATH is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be greater than 0")
	}
	if c.AutomaticInterval <= 0 {
		return errors.New("AUTOMATIC_INTERVAL must be greater than 0")
	}
	if c.ConnectionCooldown <= 0 {
		return errors.New("CONNECTION_COOLDOWN must be greater than 0")
	}
	if c.ChunkIdleTimeout <= 0 {
		return errors.New("CHUNK_IDLE_TIMEOUT must be greater than 0")
	}
	if c.MaxDuration < 0 {
		return errors.New("MAX_DURATION must not be negative")
	}
	switch strings.ToLower(c.Delivery) {
	case DeliveryNone, DeliveryTelegram, DeliveryS3:
	default:
		return fmt.Errorf("DELIVERY %q is not one of telegram, s3", c.Delivery)
	}
	return nil
}

// LoadSecrets decodes the TOML secrets file at path and applies environment
// overrides on top. A missing file is not an error.
func LoadSecrets(path string) (*Secrets, error) {
	var s Secrets
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &s); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", path, err)
			}
		}
	}
	applySecretOverrides(&s)
	return &s, nil
}

func applySecretOverrides(s *Secrets) {
	s.Telegram.BotToken = GetEnv("TELEGRAM_BOT_TOKEN", s.Telegram.BotToken)
	s.Telegram.ChatID = GetEnv("TELEGRAM_CHAT_ID", s.Telegram.ChatID)
	s.S3.Endpoint = GetEnv("S3_ENDPOINT", s.S3.Endpoint)
	s.S3.Bucket = GetEnv("S3_BUCKET", s.S3.Bucket)
	s.S3.Region = GetEnv("S3_REGION", s.S3.Region)
	s.S3.AccessKeyID = GetEnv("S3_ACCESS_KEY_ID", s.S3.AccessKeyID)
	s.S3.SecretAccessKey = GetEnv("S3_SECRET_ACCESS_KEY", s.S3.SecretAccessKey)
	s.S3.Prefix = GetEnv("S3_PREFIX", s.S3.Prefix)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}
