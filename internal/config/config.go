package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Capture   CaptureConfig   `yaml:"capture"`
	Vision    VisionConfig    `yaml:"vision"`
	Detection DetectionConfig `yaml:"detection"`
	Commands  CommandsConfig  `yaml:"commands"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Addr returns the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// Enabled reports whether status events are published to NATS.
func (n NATSConfig) Enabled() bool { return n.URL != "" }

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether status snapshots are stored.
func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

type CaptureConfig struct {
	Source     string        `yaml:"source"`
	Format     string        `yaml:"format"`
	Width      int           `yaml:"width"`
	FFmpegPath string        `yaml:"ffmpeg_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

type VisionConfig struct {
	ModelsDir            string  `yaml:"models_dir"`
	ONNXLibPath          string  `yaml:"onnx_lib_path"`
	DetectionThreshold   float64 `yaml:"detection_threshold"`
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	ImageWidth           int     `yaml:"image_width"`
	ImageHeight          int     `yaml:"image_height"`
}

type DetectionConfig struct {
	Frequency            time.Duration `yaml:"frequency"`
	MinimumBrightness    float64       `yaml:"minimum_brightness"`
	StopOnError          bool          `yaml:"stop_on_error"`
	Autostart            *bool         `yaml:"autostart"`
	EmitOnIdentityChange bool          `yaml:"emit_on_identity_change"`
}

// AutostartEnabled reports whether detection starts with the process.
func (d DetectionConfig) AutostartEnabled() bool {
	return d.Autostart == nil || *d.Autostart
}

type CommandsConfig struct {
	EnabledTypes []string      `yaml:"enabled_types"`
	ExecTimeout  time.Duration `yaml:"exec_timeout"`
}

type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from an optional YAML file and applies environment
// variable overrides. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Detection.MinimumBrightness < 0 || c.Detection.MinimumBrightness > 1 {
		return fmt.Errorf("detection.minimum_brightness must be within [0,1], got %v", c.Detection.MinimumBrightness)
	}
	if c.Detection.Frequency <= 0 {
		return fmt.Errorf("detection.frequency must be positive, got %v", c.Detection.Frequency)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7732
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "facecommand.sqlite"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "facecommand"
	}
	if cfg.Capture.Source == "" {
		cfg.Capture.Source = "/dev/video0"
	}
	if cfg.Capture.Format == "" && strings.HasPrefix(cfg.Capture.Source, "/dev/video") {
		cfg.Capture.Format = "v4l2"
	}
	if cfg.Capture.Width == 0 {
		cfg.Capture.Width = 640
	}
	if cfg.Capture.FFmpegPath == "" {
		cfg.Capture.FFmpegPath = "ffmpeg"
	}
	if cfg.Capture.Timeout == 0 {
		cfg.Capture.Timeout = 10 * time.Second
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.RecognitionThreshold == 0 {
		cfg.Vision.RecognitionThreshold = 0.4
	}
	if cfg.Vision.ImageWidth == 0 {
		cfg.Vision.ImageWidth = 100
	}
	if cfg.Vision.ImageHeight == 0 {
		cfg.Vision.ImageHeight = 100
	}
	if cfg.Detection.Frequency == 0 {
		cfg.Detection.Frequency = time.Second
	}
	if cfg.Detection.MinimumBrightness == 0 {
		cfg.Detection.MinimumBrightness = 0.5
	}
	if cfg.Commands.ExecTimeout == 0 {
		cfg.Commands.ExecTimeout = 30 * time.Second
	}
	if cfg.Events.Buffer == 0 {
		cfg.Events.Buffer = 64
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FC_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FC_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FC_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FC_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FC_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FC_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FC_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FC_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FC_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FC_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FC_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FC_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FC_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FC_CAPTURE_SOURCE"); v != "" {
		cfg.Capture.Source = v
	}
	if v := os.Getenv("FC_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("FC_DETECTION_FREQUENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Detection.Frequency = d
		}
	}
	if v := os.Getenv("FC_MINIMUM_BRIGHTNESS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.MinimumBrightness = f
		}
	}
	if v := os.Getenv("FC_STOP_ON_ERROR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Detection.StopOnError = b
		}
	}
	if v := os.Getenv("FC_AUTOSTART_DETECTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Detection.Autostart = &b
		}
	}
	if v := os.Getenv("FC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FC_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
