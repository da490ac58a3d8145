package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverLocal   = "local"
	DriverMinio   = "minio"
	DriverWebhook = "webhook"
	DriverOpenAI  = "openai"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		RateLimit      struct {
			Capacity        int `yaml:"capacity"`
			RefillPerSecond int `yaml:"refill_per_second"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Storage struct {
		Driver       string `yaml:"driver"`
		BaseDir      string `yaml:"base_dir"`
		MaxFileBytes int64  `yaml:"max_file_bytes"`
	} `yaml:"storage"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"minio"`

	Analyzer struct {
		Driver string `yaml:"driver"`
	} `yaml:"analyzer"`

	Webhook struct {
		URL              string        `yaml:"url"`
		Timeout          time.Duration `yaml:"timeout"`
		MaxResponseBytes int64         `yaml:"max_response_bytes"`
	} `yaml:"webhook"`

	OpenAI struct {
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		BaseURL     string `yaml:"base_url"`
		MaxCSVBytes int64  `yaml:"max_csv_bytes"`
	} `yaml:"openai"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	// an answer may take as long as the webhook timeout
	cfg.Server.WriteTimeout = 130 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.RateLimit.Capacity = 20
	cfg.Server.RateLimit.RefillPerSecond = 5
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Storage.Driver = DriverLocal
	cfg.Storage.BaseDir = "./public/csvs"
	cfg.Storage.MaxFileBytes = 50 << 20
	cfg.Analyzer.Driver = DriverWebhook
	cfg.Webhook.Timeout = 120 * time.Second
	cfg.Webhook.MaxResponseBytes = 4 << 20
	cfg.OpenAI.Model = "gpt-4o-mini"
	cfg.OpenAI.MaxCSVBytes = 256 << 10
	return &cfg
}

// Load reads the yaml file at path on top of Default, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("WEBHOOK_TIMEOUT"); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("WEBHOOK_TIMEOUT: %w", err)
		}
		c.Webhook.Timeout = d
	}

	str("CSV_BASE_DIR", &c.Storage.BaseDir)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("WEBHOOK_URL", &c.Webhook.URL)
	str("ANALYZER_DRIVER", &c.Analyzer.Driver)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)
	str("LOG_LEVEL", &c.Log.Level)
	return nil
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks the settings the selected drivers depend on.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Storage.MaxFileBytes < 0 {
		errs = append(errs, errors.New("storage.max_file_bytes must not be negative"))
	}

	switch c.Storage.Driver {
	case DriverLocal:
		if c.Storage.BaseDir == "" {
			errs = append(errs, errors.New("storage.base_dir is required"))
		}
	case DriverMinio:
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Analyzer.Driver {
	case DriverWebhook:
		if err := checkWebhookURL(c.Webhook.URL); err != nil {
			errs = append(errs, err)
		}
		if c.Webhook.Timeout < 0 {
			errs = append(errs, errors.New("webhook.timeout must not be negative"))
		}
	case DriverOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown analyzer driver %q", c.Analyzer.Driver))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkWebhookURL(raw string) error {
	if raw == "" {
		return errors.New("webhook.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("webhook.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook.url must be an absolute http(s) url, got %q", raw)
	}
	return nil
}

// Logger builds the process logger from the log section.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
