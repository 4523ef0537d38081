package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultClasses is the fruit allow-list, keyed by COCO class id.
var DefaultClasses = map[int]string{
	46: "banana",
	47: "apple",
	49: "orange",
	50: "broccoli",
	51: "carrot",
	52: "hot dog",
	53: "pizza",
	54: "donut",
	55: "cake",
}

type Config struct {
	Port            int    `yaml:"port"`
	UploadDirectory string `yaml:"upload_dir"`
	ResultDirectory string `yaml:"result_dir"`
	LogDirectory    string `yaml:"log_dir"`
	LogLevel        string `yaml:"log_level"`

	StoreDriver  string `yaml:"store_driver"` // sqlite | postgres
	DatabasePath string `yaml:"database_path"`
	DatabaseURL  string `yaml:"database_url"`

	ModelBackend        string         `yaml:"model_backend"` // remote | gocv
	ModelPath           string         `yaml:"model_path"`
	ModelInputSize      int            `yaml:"model_input_size"`
	InferenceURL        string         `yaml:"inference_url"`
	InferenceTimeout    time.Duration  `yaml:"inference_timeout"`
	ConfidenceThreshold float64        `yaml:"confidence_threshold"`
	IoUThreshold        float64        `yaml:"iou_threshold"`
	Classes             map[int]string `yaml:"classes"`

	MaxUploadSize   int64         `yaml:"max_upload_size"`
	MaxImagePixels  int64         `yaml:"max_image_pixels"`
	FileMaxAge      time.Duration `yaml:"file_max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	VideoFrameStep  int           `yaml:"video_frame_step"`
}

// Default returns the built-in configuration.
func Default() *Config {
	classes := make(map[int]string, len(DefaultClasses))
	for id, name := range DefaultClasses {
		classes[id] = name
	}

	return &Config{
		Port:                5000,
		UploadDirectory:     filepath.Join("static", "uploads"),
		ResultDirectory:     filepath.Join("static", "results"),
		LogDirectory:        filepath.Join(".", "logs"),
		LogLevel:            "info",
		StoreDriver:         "sqlite",
		DatabasePath:        filepath.Join("data", "fruits.db"),
		ModelBackend:        "remote",
		ModelPath:           filepath.Join("models", "yolov8n.onnx"),
		ModelInputSize:      640,
		InferenceURL:        "http://localhost:8000/predict",
		InferenceTimeout:    30 * time.Second,
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.45,
		Classes:             classes,
		MaxUploadSize:       16 << 20,
		MaxImagePixels:      50_000_000,
		FileMaxAge:          24 * time.Hour,
		CleanupInterval:     time.Hour,
		VideoFrameStep:      10,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE
// (if set), then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML path; an empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.UploadDirectory = getEnv("UPLOAD_DIR", c.UploadDirectory)
	c.ResultDirectory = getEnv("RESULT_DIR", c.ResultDirectory)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.ModelBackend = getEnv("MODEL_BACKEND", c.ModelBackend)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelInputSize = getEnvAsInt("MODEL_INPUT_SIZE", c.ModelInputSize)
	c.InferenceURL = getEnv("INFERENCE_URL", c.InferenceURL)
	c.InferenceTimeout = getEnvAsDuration("INFERENCE_TIMEOUT", c.InferenceTimeout)
	c.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.IoUThreshold = getEnvAsFloat("IOU_THRESHOLD", c.IoUThreshold)
	c.MaxUploadSize = getEnvAsInt64("MAX_UPLOAD_SIZE", c.MaxUploadSize)
	c.MaxImagePixels = getEnvAsInt64("MAX_IMAGE_PIXELS", c.MaxImagePixels)
	c.FileMaxAge = getEnvAsDuration("FILE_MAX_AGE", c.FileMaxAge)
	c.CleanupInterval = getEnvAsDuration("CLEANUP_INTERVAL", c.CleanupInterval)
	c.VideoFrameStep = getEnvAsInt("VIDEO_FRAME_STEP", c.VideoFrameStep)

	if v := os.Getenv("FRUIT_CLASSES"); v != "" {
		classes, err := ParseClasses(v)
		if err != nil {
			return err
		}
		c.Classes = classes
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %v out of [0,1]", c.ConfidenceThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold %v out of [0,1]", c.IoUThreshold)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("max image pixels must be positive, got %d", c.MaxImagePixels)
	}
	if c.VideoFrameStep <= 0 {
		return fmt.Errorf("video frame step must be positive, got %d", c.VideoFrameStep)
	}
	if c.ModelInputSize <= 0 {
		return fmt.Errorf("model input size must be positive, got %d", c.ModelInputSize)
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("class allow-list is empty")
	}
	switch c.StoreDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.ModelBackend {
	case "remote", "gocv":
	default:
		return fmt.Errorf("unknown model backend %q", c.ModelBackend)
	}
	return nil
}

// ClassIDs returns the allow-list ids in ascending order.
func (c *Config) ClassIDs() []int {
	ids := make([]int, 0, len(c.Classes))
	for id := range c.Classes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ParseClasses parses "47:apple,46:banana" into an id -> name map.
func ParseClasses(v string) (map[int]string, error) {
	classes := make(map[int]string)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idStr, name, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("class %q: expected id:name", part)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", part, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("class %q: empty name", part)
		}
		classes[id] = name
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes in %q", v)
	}
	return classes, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
