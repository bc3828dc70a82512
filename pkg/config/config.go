package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Naly/pkg/logger"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		BodyLimit       string        `yaml:"body_limit" default:"2M"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	MarketData struct {
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		StreamURL         string        `yaml:"stream_url"`
		Timeout           time.Duration `yaml:"timeout" default:"10s"`
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"100"`
		MaxRetries        int           `yaml:"max_retries" default:"3"`
		CacheMaxEntries   int           `yaml:"cache_max_entries" default:"1000"`
		PingInterval      time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"market_data"`
	LLM struct {
		Provider          string        `yaml:"provider" default:"claude"`
		APIKey            string        `yaml:"api_key"`
		Model             string        `yaml:"model"`
		Timeout           time.Duration `yaml:"timeout" default:"60s"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"2"`
	} `yaml:"llm"`
	Causal struct {
		ConfidenceThreshold float64 `yaml:"confidence_threshold" default:"0.3"`
		MaxFactors          int     `yaml:"max_factors" default:"5"`
		UseCache            bool    `yaml:"use_cache" default:"true"`
		LookbackDays        int     `yaml:"lookback_days" default:"30"`
	} `yaml:"causal"`
	Prediction struct {
		LookbackDays    int                `yaml:"lookback_days" default:"90"`
		UseLLMScenarios bool               `yaml:"use_llm_scenarios" default:"true"`
		ModelWeights    map[string]float64 `yaml:"model_weights"`
	} `yaml:"prediction"`
	Narrative struct {
		QualityThreshold float64 `yaml:"quality_threshold" default:"70"`
		AutoValidate     bool    `yaml:"auto_validate" default:"true"`
		IncludeDeepDive  bool    `yaml:"include_deep_dive" default:"true"`
		TargetAudience   string  `yaml:"target_audience" default:"retail"`
	} `yaml:"narrative"`
	Calibration struct {
		Enabled  bool     `yaml:"enabled"`
		Schedule string   `yaml:"schedule" default:"0 3 * * *"`
		Tickers  []string `yaml:"tickers"`
		Years    float64  `yaml:"years" default:"1"`
	} `yaml:"calibration"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"naly"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"naly.market-events"`
		ResultsTopic string   `yaml:"results_topic" default:"naly.pipeline-results"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"50"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"naly-pipeline"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"naly"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		Compress         bool          `yaml:"compress" default:"true"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file next to the process is read first when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("MARKET_DATA_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.LLM.Provider == "claude" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}
	if c.MarketData.RequestsPerMinute <= 0 {
		return fmt.Errorf("market_data.requests_per_minute must be positive")
	}
	if c.LLM.Provider != "claude" && c.LLM.Provider != "gemini" {
		return fmt.Errorf("llm.provider must be 'claude' or 'gemini', got '%s'", c.LLM.Provider)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Calibration.Enabled && len(c.Calibration.Tickers) == 0 {
		return fmt.Errorf("calibration.tickers cannot be empty when calibration is enabled")
	}
	return nil
}
