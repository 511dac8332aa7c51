package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                string
	DatabaseURL         string
	BlobPath            string
	OpenAIAPIKey        string
	EmbeddingModel      string
	EmbeddingDimensions int
	SlackBotToken       string
	WebhookSecret       string
	LogLevel            string
	LogFormat           string
	Environment         string
}

func Load() *Config {
	return &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", "postgres://localhost/feedbackd?sslmode=disable"),
		BlobPath:            getEnvOrDefault("BLOB_PATH", "./data/blobs"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: getEnvIntOrDefault("EMBEDDING_DIMENSIONS", 768),
		SlackBotToken:       os.Getenv("SLACK_BOT_TOKEN"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		Environment:         getEnvOrDefault("ENVIRONMENT", "development"),
	}
}

func (c *Config) Validate() error {
	var problems []string

	if c.OpenAIAPIKey == "" {
		problems = append(problems, "OPENAI_API_KEY is required")
	}

	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}

	if c.BlobPath == "" {
		problems = append(problems, "BLOB_PATH is required")
	}

	if c.EmbeddingDimensions <= 0 {
		problems = append(problems, "EMBEDDING_DIMENSIONS must be a positive integer")
	}

	// Optional validations
	if c.SlackBotToken != "" && !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		problems = append(problems, "SLACK_BOT_TOKEN must start with 'xoxb-'")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !contains(validLogLevels, strings.ToUpper(c.LogLevel)) {
		problems = append(problems, "LOG_LEVEL must be one of: DEBUG, INFO, WARN, ERROR")
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		problems = append(problems, "LOG_FORMAT must be one of: text, json")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != ""
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
