package config

import (
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nijaru/videochat/validation"
)

// DefaultFile is read when no explicit config path is given and it exists.
const DefaultFile = "videochat.yaml"

const envPrefix = "VIDEOCHAT_"

type Config struct {
	BaseURL   string        `yaml:"base_url"`
	APIPrefix string        `yaml:"api_prefix"`
	Timeout   time.Duration `yaml:"timeout"`

	// RateLimit is requests per second; zero disables throttling.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	Log     LogConfig     `yaml:"log"`
	History HistoryConfig `yaml:"history"`
	Export  ExportConfig  `yaml:"export"`
	S3      S3Config      `yaml:"s3"`
	Watch   WatchConfig   `yaml:"watch"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
	// DedupThreshold is the pHash distance below which two frames are duplicates.
	DedupThreshold int `yaml:"dedup_threshold"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type WatchConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// Default returns the configuration used before any file or environment
// override is applied.
func Default() *Config {
	return &Config{
		BaseURL:   "http://localhost:8002",
		APIPrefix: "/api/v1",
		RateBurst: 1,
		Log: LogConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Path: "./data/history.db",
		},
		Export: ExportConfig{
			Dir:            "./frames",
			DedupThreshold: 5,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Watch: WatchConfig{
			SettleDelay: 2 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// DefaultFile when path is empty and the file exists), a .env file and
// VIDEOCHAT_* environment variables, in that order of precedence. The result
// is not validated; callers merge their own overrides first and then call
// Validate.
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
	}

	// godotenv never overrides variables already present in the environment
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "loading %s", envFile)
	}

	cfg.applyEnv()

	return cfg, nil
}

func loadYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.APIPrefix = getEnv("API_PREFIX", c.APIPrefix)
	c.Timeout = getEnvAsDuration("TIMEOUT", c.Timeout)
	c.RateLimit = getEnvAsFloat("RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvAsInt("RATE_BURST", c.RateBurst)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Dir = getEnv("LOG_DIR", c.Log.Dir)
	c.Log.JSON = getEnvAsBool("LOG_JSON", c.Log.JSON)

	c.History.Path = getEnv("HISTORY_PATH", c.History.Path)

	c.Export.Dir = getEnv("EXPORT_DIR", c.Export.Dir)
	c.Export.DedupThreshold = getEnvAsInt("DEDUP_THRESHOLD", c.Export.DedupThreshold)

	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("S3_SECRET_KEY", c.S3.SecretKey)

	c.Watch.SettleDelay = getEnvAsDuration("WATCH_SETTLE", c.Watch.SettleDelay)
	c.Watch.MetricsAddr = getEnv("METRICS_ADDR", c.Watch.MetricsAddr)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validation.ValidateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.New("rate burst must be at least 1 when rate limiting")
	}
	if c.Export.DedupThreshold < 0 || c.Export.DedupThreshold > 64 {
		return errors.New("dedup threshold must be between 0 and 64")
	}
	if c.Watch.SettleDelay < 0 {
		return errors.New("watch settle delay must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		warnInvalid(key, value, defaultValue, "Invalid number, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue any, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          envPrefix + key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}
