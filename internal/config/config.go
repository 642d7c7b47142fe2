package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64

	// Detection engine
	Engine         string // "tflite" or "remote"
	ModelName      string
	ModelSource    string // "file" or "azure"
	ModelDir       string
	LabelsFile     string
	InferenceURL   string
	ScoreThreshold float64
	MaxResults     int
	NumThreads     int

	// Frame pipeline and tracking
	DetectInterval   time.Duration
	ExcludeLabels    []string
	PersonLabel      string
	NoLabelText      string
	BoardingStrategy string // "presence" or "cabin"
	TrackingActive   bool
	FrameTimeout     time.Duration

	// Frame sources
	FrameDir   string   // root for file:// frames; empty disables them
	FrameHosts []string // allowed frame hosts, "*.suffix" patterns allowed

	// Overlay surface
	ViewWidth  int
	ViewHeight int

	// Azure blob storage for frames and model assets
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	// Notifications
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
	AWSRegion     string
	IoTEndpoint   string
	DeviceName    string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		Engine:         getEnvOrDefault("ENGINE", "tflite"),
		ModelName:      getEnvOrDefault("MODEL_NAME", "model.tflite"),
		ModelSource:    getEnvOrDefault("MODEL_SOURCE", "file"),
		ModelDir:       getEnvOrDefault("MODEL_DIR", "./assets"),
		LabelsFile:     os.Getenv("LABELS_FILE"),
		InferenceURL:   os.Getenv("INFERENCE_URL"),
		ScoreThreshold: parseFloatOrDefault("SCORE_THRESHOLD", 0.5),
		MaxResults:     int(parseIntOrDefault("MAX_RESULTS", 5)),
		NumThreads:     int(parseIntOrDefault("NUM_THREADS", 0)),

		DetectInterval:   parseDurationOrDefault("DETECT_INTERVAL", 500*time.Millisecond),
		ExcludeLabels:    parseListOrDefault("EXCLUDE_LABELS", nil),
		PersonLabel:      getEnvOrDefault("PERSON_LABEL", "person"),
		NoLabelText:      getEnvOrDefault("NO_LABEL_TEXT", "none"),
		BoardingStrategy: getEnvOrDefault("BOARDING_STRATEGY", "presence"),
		TrackingActive:   parseBoolOrDefault("TRACKING_ACTIVE", true),
		FrameTimeout:     parseDurationOrDefault("FRAME_TIMEOUT", 10*time.Second),

		FrameDir:   os.Getenv("FRAME_DIR"),
		FrameHosts: parseListOrDefault("FRAME_HOSTS", nil),

		ViewWidth:  int(parseIntOrDefault("VIEW_WIDTH", 1080)),
		ViewHeight: int(parseIntOrDefault("VIEW_HEIGHT", 1920)),

		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		AzureContainer:   getEnvOrDefault("AZURE_CONTAINER", "models"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       int(parseIntOrDefault("REDIS_DB", 0)),
		RedisChannel:  getEnvOrDefault("REDIS_CHANNEL", "carlost:events"),
		AWSRegion:     getEnvOrDefault("AWS_REGION", "ap-northeast-2"),
		IoTEndpoint:   os.Getenv("IOT_ENDPOINT"),
		DeviceName:    getEnvOrDefault("DEVICE_NAME", "carlost-device"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("SCORE_THRESHOLD must be within [0, 1] (got %v)", c.ScoreThreshold)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be > 0 (got %d)", c.MaxResults)
	}
	if c.ViewWidth <= 0 || c.ViewHeight <= 0 {
		return fmt.Errorf("view size must be positive (got %dx%d)", c.ViewWidth, c.ViewHeight)
	}
	switch c.Engine {
	case "tflite":
	case "remote":
		if c.InferenceURL == "" {
			return fmt.Errorf("INFERENCE_URL is required for the remote engine")
		}
	default:
		return fmt.Errorf("unsupported ENGINE: %q", c.Engine)
	}
	switch c.ModelSource {
	case "file":
	case "azure":
		if c.AzureAccountName == "" || c.AzureAccountKey == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for MODEL_SOURCE=azure")
		}
	default:
		return fmt.Errorf("unsupported MODEL_SOURCE: %q", c.ModelSource)
	}
	if c.BoardingStrategy != "presence" && c.BoardingStrategy != "cabin" {
		return fmt.Errorf("unsupported BOARDING_STRATEGY: %q", c.BoardingStrategy)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// parseListOrDefault reads a comma separated list, dropping blank entries.
func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
