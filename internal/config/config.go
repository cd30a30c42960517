package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ThreatHunter server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Models    ModelsConfig
	Encoder   EncoderConfig
	Detectors DetectorsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig locates the result store: host, port, and logical database index.
type RedisConfig struct {
	Host string
	Port int
	DB   int
}

// Addr returns the host:port address for the Redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelsConfig locates the model artifact store on disk.
type ModelsConfig struct {
	Dir string
}

type EncoderConfig struct {
	Provider string
	Timeout  time.Duration
	Hashing  HashingConfig
	Ollama   OllamaConfig
}

type HashingConfig struct {
	Dim int
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// DetectorsConfig carries the engine toggles and per-detector tuning knobs.
type DetectorsConfig struct {
	EnableTimeSeries  bool
	EnableLogAnalysis bool
	EnableBehavioral  bool

	SequenceLength      int
	ThresholdPercentile float64
	TrainingEpochs      int
	Contamination       float64
	MinEntityEvents     int

	Timeout   time.Duration
	ResultTTL time.Duration
}

var validEncoders = map[string]bool{
	"hashing": true,
	"ollama":  true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("THREATHUNTER_PORT", 8080),
			Env:  envString("THREATHUNTER_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host: envString("REDIS_HOST", "localhost"),
			Port: envInt("REDIS_PORT", 6379),
			DB:   envInt("REDIS_DB", 0),
		},
		Models: ModelsConfig{
			Dir: envString("MODEL_DIR", "models"),
		},
		Encoder: EncoderConfig{
			Provider: envString("ENCODER_PROVIDER", "hashing"),
			Timeout:  envDuration("ENCODER_TIMEOUT", 30*time.Second),
			Hashing: HashingConfig{
				Dim: envInt("ENCODER_DIM", 64),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			},
		},
		Detectors: DetectorsConfig{
			EnableTimeSeries:    envBool("ENABLE_TIME_SERIES", true),
			EnableLogAnalysis:   envBool("ENABLE_LOG_ANALYSIS", true),
			EnableBehavioral:    envBool("ENABLE_BEHAVIORAL", true),
			SequenceLength:      envInt("SEQUENCE_LENGTH", 60),
			ThresholdPercentile: envFloat("THRESHOLD_PERCENTILE", 0.95),
			TrainingEpochs:      envInt("TRAINING_EPOCHS", 100),
			Contamination:       envFloat("CONTAMINATION", 0.1),
			MinEntityEvents:     envInt("MIN_ENTITY_EVENTS", 10),
			Timeout:             envDuration("DETECTOR_TIMEOUT", 60*time.Second),
			ResultTTL:           envDuration("RESULT_TTL", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST must not be empty")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("REDIS_PORT must be in 1-65535, got %d", c.Redis.Port)
	}

	if !validEncoders[c.Encoder.Provider] {
		return fmt.Errorf("ENCODER_PROVIDER must be one of hashing, ollama; got %q", c.Encoder.Provider)
	}
	if c.Encoder.Provider == "ollama" {
		if !strings.HasPrefix(c.Encoder.Ollama.BaseURL, "http://") && !strings.HasPrefix(c.Encoder.Ollama.BaseURL, "https://") {
			return fmt.Errorf("OLLAMA_BASE_URL must start with http:// or https://, got %q", c.Encoder.Ollama.BaseURL)
		}
	}
	if c.Encoder.Hashing.Dim <= 0 {
		return fmt.Errorf("ENCODER_DIM must be positive, got %d", c.Encoder.Hashing.Dim)
	}

	if c.Detectors.SequenceLength < 2 {
		return fmt.Errorf("SEQUENCE_LENGTH must be at least 2, got %d", c.Detectors.SequenceLength)
	}
	if c.Detectors.ThresholdPercentile <= 0 || c.Detectors.ThresholdPercentile >= 1 {
		return fmt.Errorf("THRESHOLD_PERCENTILE must be in (0, 1), got %g", c.Detectors.ThresholdPercentile)
	}
	if c.Detectors.Contamination <= 0 || c.Detectors.Contamination > 0.5 {
		return fmt.Errorf("CONTAMINATION must be in (0, 0.5], got %g", c.Detectors.Contamination)
	}
	if c.Detectors.MinEntityEvents < 1 {
		return fmt.Errorf("MIN_ENTITY_EVENTS must be at least 1, got %d", c.Detectors.MinEntityEvents)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
