package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port               int
	RealtimeEndpoint   string // Azure OpenAI resource endpoint (https://...)
	APIKey             string
	Deployment         string // realtime model deployment name
	APIVersion         string
	Voice              string
	TranscriptionModel string
	RedisURL           string
	RedisPassword      string
	MaxSessions        int
	SessionTimeout     time.Duration
	AllowedOrigins     []string
	KeepAlivePeriod    time.Duration
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:               8080,
		Deployment:         "gpt-4o-realtime-preview",
		APIVersion:         "2025-04-01-preview",
		Voice:              "sage",
		TranscriptionModel: "whisper-1",
		RedisURL:           "localhost:6379",
		RedisPassword:      "",
		MaxSessions:        100,
		SessionTimeout:     30 * time.Minute,
		AllowedOrigins:     []string{"*"},
		KeepAlivePeriod:    30 * time.Second,
	}

	// Required: OPENAI_VOICE_ENDPOINT
	config.RealtimeEndpoint = os.Getenv("OPENAI_VOICE_ENDPOINT")
	if config.RealtimeEndpoint == "" {
		return nil, fmt.Errorf("OPENAI_VOICE_ENDPOINT environment variable is required")
	}

	// Required: OPENAI_VOICE_KEY
	config.APIKey = os.Getenv("OPENAI_VOICE_KEY")
	if config.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_VOICE_KEY environment variable is required")
	}

	// Optional: OPENAI_VOICE_DEPLOYMENT
	if deployment := os.Getenv("OPENAI_VOICE_DEPLOYMENT"); deployment != "" {
		config.Deployment = deployment
	}

	// Optional: OPENAI_API_VERSION
	if version := os.Getenv("OPENAI_API_VERSION"); version != "" {
		config.APIVersion = version
	}

	// Optional: VOICE
	if voice := os.Getenv("VOICE"); voice != "" {
		config.Voice = voice
	}

	// Optional: TRANSCRIPTION_MODEL
	if model := os.Getenv("TRANSCRIPTION_MODEL"); model != "" {
		config.TranscriptionModel = model
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	return config, nil
}
