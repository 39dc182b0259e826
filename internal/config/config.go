package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the story generation service.
type Config struct {
	// Server settings
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Text generation settings (OpenAI-compatible endpoint or Ollama)
	AIBackend        string        `envconfig:"AI_BACKEND" default:"openai"` // openai | ollama
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`
	// Secret field WITHOUT an envconfig tag
	AIAPIKey string

	// Image generation settings
	ImageServerURL       string        `envconfig:"IMAGE_SERVER_URL" default:"http://localhost:8002/generate"`
	ImageTimeout         time.Duration `envconfig:"IMAGE_TIMEOUT" default:"60s"`
	ImageMaxAttempts     int           `envconfig:"IMAGE_MAX_ATTEMPTS" default:"3"`
	ImageBaseRetryDelay  time.Duration `envconfig:"IMAGE_BASE_RETRY_DELAY" default:"1s"`
	ImageStyleSuffix     string        `envconfig:"IMAGE_STYLE_SUFFIX" default:", children's book illustration, soft watercolor style, warm colors"`
	ImagePlaceholderURL  string        `envconfig:"IMAGE_PLACEHOLDER_URL" default:"/static/placeholder_story.png"`
	ImageAspectRatio     string        `envconfig:"IMAGE_ASPECT_RATIO" default:"2:3"`

	// Pipeline settings
	MaxRevisions    int `envconfig:"PIPELINE_MAX_REVISIONS" default:"2"`
	PromptMaxLength int `envconfig:"PROMPT_MAX_LENGTH" default:"2000"`

	// PostgreSQL settings
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"taleweaver_db"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Secret field WITHOUT an envconfig tag
	DBPassword string

	// Redis settings (plan skeleton cache)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PlanCacheTTL  time.Duration `envconfig:"PLAN_CACHE_TTL" default:"6h"`
	RedisPassword string

	// RabbitMQ settings (story event notifications; optional)
	RabbitMQURL     string `envconfig:"RABBITMQ_URL" default:""`
	StoryEventQueue string `envconfig:"STORY_EVENT_QUEUE" default:"story_events"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Secrets come from Docker Secrets files, with a plain env fallback
	// for local development.
	cfg.AIAPIKey = readSecret("ai_api_key", "AI_API_KEY")
	cfg.DBPassword = readSecret("db_password", "DB_PASSWORD")
	cfg.RedisPassword = readSecret("redis_password", "REDIS_PASSWORD")

	if cfg.AIBackend != "openai" && cfg.AIBackend != "ollama" {
		return nil, fmt.Errorf("unknown AI backend %q (expected openai or ollama)", cfg.AIBackend)
	}
	if cfg.MaxRevisions < 0 {
		return nil, fmt.Errorf("PIPELINE_MAX_REVISIONS must not be negative, got %d", cfg.MaxRevisions)
	}

	return &cfg, nil
}

// readSecret reads a secret from the standard Docker Secrets path,
// falling back to the given environment variable.
func readSecret(secretName, envName string) string {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	if secretBytes, err := os.ReadFile(filePath); err == nil {
		if secret := strings.TrimSpace(string(secretBytes)); secret != "" {
			return secret
		}
	}
	return os.Getenv(envName)
}
