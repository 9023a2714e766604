package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig    BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Providers      map[string]ProviderConfig `json:"providers" yaml:"providers"`
	ActiveProvider string                    `json:"active_provider" yaml:"active_provider"`
	Redis          RedisConfig               `json:"redis" yaml:"redis"`
	Databases      map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Analytics      AnalyticsConfig           `json:"analytics" yaml:"analytics"`
	Exports        ExportConfig              `json:"exports" yaml:"exports"`
	Cache          CacheConfig               `json:"cache" yaml:"cache"`
	Tracing        TracingConfig             `json:"tracing" yaml:"tracing"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

type BasicConfig struct {
	ServerAddress   string   `json:"server_address" yaml:"server_address"`
	DataDir         string   `json:"data_dir" yaml:"data_dir"`
	DefaultUser     string   `json:"default_user" yaml:"default_user"`
	AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins"`
	LLMTimeout      int      `json:"llm_timeout_seconds" yaml:"llm_timeout_seconds"`
	LLMRatePerMin   int      `json:"llm_requests_per_minute" yaml:"llm_requests_per_minute"`
	EnableWebSearch bool     `json:"enable_web_search" yaml:"enable_web_search"`
	MetricsEnabled  bool     `json:"metrics_enabled" yaml:"metrics_enabled"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

// AnalyticsConfig picks the event sink. Sink is "file" (default) or a key of Databases.
type AnalyticsConfig struct {
	Sink      string `json:"sink" yaml:"sink"`
	Workers   int    `json:"workers" yaml:"workers"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
}

type ExportConfig struct {
	TTLMinutes           int    `json:"ttl_minutes" yaml:"ttl_minutes"`
	CleanIntervalMinutes int    `json:"clean_interval_minutes" yaml:"clean_interval_minutes"`
	S3Bucket             string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region             string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint           string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Prefix             string `json:"s3_prefix" yaml:"s3_prefix"`
}

// CacheConfig selects the session read cache: "", "memory" or "redis".
type CacheConfig struct {
	Backend    string `json:"backend" yaml:"backend"`
	TTLMinutes int    `json:"ttl_minutes" yaml:"ttl_minutes"`
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
	Insecure    bool    `json:"insecure" yaml:"insecure"`
}

const (
	DefaultProvider = "openai"
	DefaultModel    = "gpt-4o-mini"
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress: ":8000",
			DataDir:       "data",
			DefaultUser:   "u1",
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
			LLMTimeout:     30,
			MetricsEnabled: true,
		},
		Providers: map[string]ProviderConfig{
			DefaultProvider: {Model: DefaultModel},
		},
		ActiveProvider: DefaultProvider,
		Analytics:      AnalyticsConfig{Sink: "file", Workers: 2, QueueSize: 256},
		Exports:        ExportConfig{TTLMinutes: 24 * 60, CleanIntervalMinutes: 60},
		Tracing:        TracingConfig{ServiceName: "chatmemo", SampleRate: 1.0},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: defaults are returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if cfg.BasicConfig.DataDir == "" {
		return nil, fmt.Errorf("data_dir must be configured")
	}
	if !filepath.IsAbs(cfg.BasicConfig.DataDir) {
		cfg.BasicConfig.DataDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.DataDir)
	}
	for name, db := range cfg.Databases {
		if strings.HasPrefix(name, "sqlite") && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets OPENAI_API_KEY switch the service into LLM mode without a config edit.
func (c *Config) applyEnv() {
	key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if key == "" {
		return
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	prov := c.Providers["openai"]
	if prov.APIKey == "" {
		prov.APIKey = key
		if prov.Model == "" {
			prov.Model = DefaultModel
		}
		c.Providers["openai"] = prov
	}
}

// Provider returns the active provider name and its settings.
func (c *Config) Provider() (string, ProviderConfig) {
	name := c.ActiveProvider
	if name == "" {
		name = DefaultProvider
	}
	prov := c.Providers[name]
	if prov.Model == "" && name == DefaultProvider {
		prov.Model = DefaultModel
	}
	return name, prov
}

// LLMTimeout is the per-completion deadline.
func (c *Config) LLMTimeout() time.Duration {
	if c.BasicConfig.LLMTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.BasicConfig.LLMTimeout) * time.Second
}
