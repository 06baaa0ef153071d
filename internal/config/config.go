package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Source   SourceConfig   `mapstructure:"source"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // postgres DSN
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

// LLMConfig configures the chat completion endpoint and the call policy
// applied to every request.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, azure
	BaseURL     string  `mapstructure:"base_url"`
	Deployment  string  `mapstructure:"deployment"`  // azure only
	APIVersion  string  `mapstructure:"api_version"` // azure only
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`

	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	JitterFactor      float64       `mapstructure:"jitter_factor"`

	// Outbound rate limit shared by all workers; 0 disables it.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type PipelineConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	BatchTimeout       time.Duration `mapstructure:"batch_timeout"` // 0 means no deadline
	RetryFailedPass    bool          `mapstructure:"retry_failed_pass"`
	SummaryMinRunes    int           `mapstructure:"summary_min_runes"`
	SummaryMaxRunes    int           `mapstructure:"summary_max_runes"`
	SummaryMaxTokens   int           `mapstructure:"summary_max_tokens"`
	SummaryTemperature float64       `mapstructure:"summary_temperature"`
}

type SourceConfig struct {
	Type            string   `mapstructure:"type"` // database, staging
	StagingPath     string   `mapstructure:"staging_path"`
	DaysBack        int      `mapstructure:"days_back"` // 0 selects the weekday rule
	IncludeProducts []string `mapstructure:"include_products"`
	ExcludeProducts []string `mapstructure:"exclude_products"`
	ExcludeSubjects []string `mapstructure:"exclude_subjects"`
	NewsTypes       []string `mapstructure:"news_types"`
}

type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment
	v.BindEnv("llm.api_key", "LLM_API_KEY", "AZURE_OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "LLM_BASE_URL", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("database.url", "DATABASE_URL", "DATABASE_DSN")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/newstagger.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_version", "2024-06-01")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 5000)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.base_delay", time.Second)
	v.SetDefault("llm.max_delay", 30*time.Second)
	v.SetDefault("llm.backoff_multiplier", 2.0)
	v.SetDefault("llm.jitter_factor", 0.5)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)

	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.batch_timeout", 0)
	v.SetDefault("pipeline.retry_failed_pass", true)
	v.SetDefault("pipeline.summary_min_runes", 100)
	v.SetDefault("pipeline.summary_max_runes", 150)
	v.SetDefault("pipeline.summary_max_tokens", 500)
	v.SetDefault("pipeline.summary_temperature", 1.0)

	v.SetDefault("source.type", "database")
	v.SetDefault("source.staging_path", "./data/staging/news.jsonl")
	v.SetDefault("source.days_back", 0)
	v.SetDefault("source.include_products", []string{"AS"})
	v.SetDefault("source.exclude_products", []string{"NO300011"})
	v.SetDefault("source.exclude_subjects", []string{"經濟日報"})
	v.SetDefault("source.news_types", []string{"科技脈動", "產業情報", "國際股市", "頭條新聞", "研究報告"})

	v.SetDefault("prompts.dir", "./prompts")
	v.SetDefault("output.dir", "./outputs")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "newstagger")
	v.SetDefault("storage.prefix", "exports")
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.Pipeline.SummaryMinRunes > c.Pipeline.SummaryMaxRunes {
		return fmt.Errorf("pipeline.summary_min_runes (%d) exceeds summary_max_runes (%d)",
			c.Pipeline.SummaryMinRunes, c.Pipeline.SummaryMaxRunes)
	}
	switch c.LLM.Provider {
	case "openai":
	case "azure":
		if c.LLM.Deployment == "" {
			return fmt.Errorf("llm.deployment is required for the azure provider")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	switch c.Source.Type {
	case "database":
		if !c.Database.Enabled {
			return fmt.Errorf("source.type database requires database.enabled")
		}
	case "staging":
		if c.Source.StagingPath == "" {
			return fmt.Errorf("source.staging_path is required for the staging source")
		}
	default:
		return fmt.Errorf("unknown source.type %q", c.Source.Type)
	}
	return nil
}
