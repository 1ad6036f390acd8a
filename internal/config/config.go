// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"bedrock-chatbot/internal/domain/model"
)

const EnvPrefix = "CHATBOT"

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Title          string        `yaml:"title"`
}

type BotConfig struct {
	Token   string `yaml:"token"`
	Workers int    `yaml:"workers"` // polling workers
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables the usage ledger
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	Provider        string               `yaml:"provider"` // bedrock | openai | gemini | noop
	ModelID         string               `yaml:"model_id"`
	Region          string               `yaml:"region"`
	Profile         string               `yaml:"profile"`  // shared credentials profile (bedrock)
	Endpoint        string               `yaml:"endpoint"` // override, mostly for tests
	OpenAIKey       string               `yaml:"openai_key"`
	OpenAIBaseURL   string               `yaml:"openai_base_url"`
	GeminiKey       string               `yaml:"gemini_key"`
	GeminiURL       string               `yaml:"gemini_url"`
	RequestTimeout  time.Duration        `yaml:"request_timeout"`
	ConcurrentLimit int                  `yaml:"concurrent_limit"` // max concurrent AI calls
	Decoding        model.DecodingConfig `yaml:"decoding"`
}

type MemoryConfig struct {
	MaxTokenLimit int    `yaml:"max_token_limit"`
	Encoding      string `yaml:"encoding"`
}

type SessionConfig struct {
	Store        string        `yaml:"store"` // memory | redis
	IdleTTL      time.Duration `yaml:"idle_ttl"`
	Secret       string        `yaml:"secret"` // cookie signing key
	SecureCookie bool          `yaml:"secure_cookie"`
	SweepEvery   time.Duration `yaml:"sweep_every"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // 32 bytes, seals session state at rest in redis
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Memory   MemoryConfig   `yaml:"memory"`
	Session  SessionConfig  `yaml:"session"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// envOverrides are read from CHATBOT_* variables after the yaml file so
// secrets never need to live in it.
type envOverrides struct {
	HTTPAddr      string `envconfig:"HTTP_ADDR"`
	Provider      string `envconfig:"AI_PROVIDER"`
	ModelID       string `envconfig:"AI_MODEL_ID"`
	Region        string `envconfig:"AI_REGION"`
	Profile       string `envconfig:"AI_PROFILE"`
	OpenAIKey     string `envconfig:"OPENAI_KEY"`
	GeminiKey     string `envconfig:"GEMINI_KEY"`
	BotToken      string `envconfig:"BOT_TOKEN"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisURL      string `envconfig:"REDIS_URL"`
	SessionStore  string `envconfig:"SESSION_STORE"`
	SessionSecret string `envconfig:"SESSION_SECRET"`
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`
}

const (
	DefaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultRegion       = "us-east-1"
	DefaultProfile      = "default"
)

// LoadConfig reads .env (if any), the yaml file at path (if any) and CHATBOT_*
// overrides, then fills defaults. An empty path means defaults plus environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	// decoding starts from the shipped values so an explicit zero in yaml survives
	cfg := Config{AI: AIConfig{Decoding: model.DefaultDecoding()}}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	env.apply(&cfg)

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.HTTP.Addr, e.HTTPAddr)
	set(&cfg.AI.Provider, e.Provider)
	set(&cfg.AI.ModelID, e.ModelID)
	set(&cfg.AI.Region, e.Region)
	set(&cfg.AI.Profile, e.Profile)
	set(&cfg.AI.OpenAIKey, e.OpenAIKey)
	set(&cfg.AI.GeminiKey, e.GeminiKey)
	set(&cfg.Bot.Token, e.BotToken)
	set(&cfg.Database.URL, e.DatabaseURL)
	set(&cfg.Redis.URL, e.RedisURL)
	set(&cfg.Session.Store, e.SessionStore)
	set(&cfg.Session.Secret, e.SessionSecret)
	set(&cfg.Security.EncryptionKey, e.EncryptionKey)
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 90 * time.Second
	}
	if cfg.HTTP.Title == "" {
		cfg.HTTP.Title = "This is a Chatbot App"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "bedrock"
	}
	if cfg.AI.Provider == "bedrock" {
		if cfg.AI.ModelID == "" {
			cfg.AI.ModelID = DefaultBedrockModel
		}
		if cfg.AI.Region == "" {
			cfg.AI.Region = DefaultRegion
		}
		if cfg.AI.Profile == "" {
			cfg.AI.Profile = DefaultProfile
		}
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 60 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	def := model.DefaultDecoding()
	if cfg.AI.Decoding.MaxTokens <= 0 {
		cfg.AI.Decoding.MaxTokens = def.MaxTokens
	}
	if cfg.AI.Decoding.StopSequence == "" {
		cfg.AI.Decoding.StopSequence = def.StopSequence
	}

	if cfg.Memory.MaxTokenLimit <= 0 {
		cfg.Memory.MaxTokenLimit = 300
	}
	if cfg.Memory.Encoding == "" {
		cfg.Memory.Encoding = "cl100k_base"
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	cfg.Session.IdleTTL = normalizeTTL(cfg.Session.IdleTTL)
	if cfg.Session.SweepEvery <= 0 {
		cfg.Session.SweepEvery = time.Minute
	}
}

// Validate performs minimal validation; defaults are applied first.
func (c *Config) Validate() error {
	if err := c.AI.Decoding.Validate(); err != nil {
		return fmt.Errorf("ai.decoding: %w", err)
	}
	switch c.AI.Provider {
	case "bedrock", "openai", "gemini", "noop":
	default:
		return fmt.Errorf("ai.provider: unknown provider %q", c.AI.Provider)
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when session.store is redis")
		}
		if len(c.Security.EncryptionKey) != 32 {
			return errors.New("security.encryption_key must be 32 bytes when session.store is redis")
		}
	default:
		return fmt.Errorf("session.store: unknown store %q", c.Session.Store)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Minute
	}
	return d
}
