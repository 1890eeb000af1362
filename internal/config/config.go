package config

import "time"

// Default configuration values.
const (
	defaultServiceName      = "wolfalert"
	defaultServicePort      = 8080
	defaultDBHost           = "localhost"
	defaultDBPort           = 5432
	defaultDBUser           = "postgres"
	defaultDBName           = "wolfalert"
	defaultDBSSLMode        = "disable"
	defaultDBMaxConns       = 25
	defaultDBMaxIdleConns   = 5
	defaultRedisAddress     = "localhost:6379"
	defaultInsightCacheTTL  = 24 * time.Hour
	defaultFetchInterval    = 4 * time.Hour
	defaultFetchConcurrency = 5
	defaultFetchTimeout     = 30 * time.Second
	defaultBackoffBase      = time.Minute
	defaultBackoffCap       = time.Hour
	defaultDegradedAfter    = 3
	defaultTickInterval     = time.Minute
	defaultExpirySweep      = 24 * time.Hour
	defaultRetentionDays    = 30
	defaultScoreConcurrency = 4
	defaultScoreTimeout     = 30 * time.Second
	defaultCallsPerMinute   = 20
	defaultRescoreInterval  = 15 * time.Minute
	defaultRescoreBatch     = 50
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxSecondary     = 9
	defaultLogLevel         = "info"
)

// Config holds all configuration for the WolfAlert service.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"  env:"WOLFALERT_PORT"`
	Debug bool   `yaml:"debug" env:"APP_DEBUG"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"     env:"POSTGRES_HOST"`
	Port            int           `yaml:"port"     env:"POSTGRES_PORT"`
	User            string        `yaml:"user"     env:"POSTGRES_USER"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" env:"POSTGRES_DB"`
	SSLMode         string        `yaml:"sslmode"  env:"POSTGRES_SSLMODE"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// RedisConfig holds Redis configuration for the insight hot cache.
type RedisConfig struct {
	Address         string        `yaml:"address"  env:"REDIS_ADDRESS"`
	Password        string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB              int           `yaml:"db"`
	InsightCacheTTL time.Duration `yaml:"insight_cache_ttl"`
}

// FetcherConfig holds feed scheduling and retry configuration.
type FetcherConfig struct {
	DefaultInterval time.Duration `yaml:"default_interval"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	Concurrency     int           `yaml:"concurrency" env:"FETCH_CONCURRENCY"`
	Timeout         time.Duration `yaml:"timeout"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffCap      time.Duration `yaml:"backoff_cap"`
	DegradedAfter   int           `yaml:"degraded_after"`
	ExpirySweep     time.Duration `yaml:"expiry_sweep"`
	RetentionDays   int           `yaml:"retention_days"`
}

// ScorerConfig holds relevance scoring configuration.
type ScorerConfig struct {
	OpenAIKey       string        `yaml:"openai_key" env:"OPENAI_API_KEY"`
	Model           string        `yaml:"model"      env:"OPENAI_MODEL"`
	Concurrency     int           `yaml:"concurrency" env:"SCORE_CONCURRENCY"`
	Timeout         time.Duration `yaml:"timeout"`
	CallsPerMinute  int           `yaml:"calls_per_minute"`
	RescoreInterval time.Duration `yaml:"rescore_interval"`
	RescoreBatch    int           `yaml:"rescore_batch"`
}

// DashboardConfig holds assembler configuration.
type DashboardConfig struct {
	MaxSecondary int `yaml:"max_secondary"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads configuration from path, applies defaults and env overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = defaultServicePort
	}

	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setFetcherDefaults(&cfg.Fetcher)
	setScorerDefaults(&cfg.Scorer)

	if cfg.Dashboard.MaxSecondary == 0 {
		cfg.Dashboard.MaxSecondary = defaultMaxSecondary
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
	if r.InsightCacheTTL == 0 {
		r.InsightCacheTTL = defaultInsightCacheTTL
	}
}

func setFetcherDefaults(f *FetcherConfig) {
	if f.DefaultInterval == 0 {
		f.DefaultInterval = defaultFetchInterval
	}
	if f.TickInterval == 0 {
		f.TickInterval = defaultTickInterval
	}
	if f.Concurrency == 0 {
		f.Concurrency = defaultFetchConcurrency
	}
	if f.Timeout == 0 {
		f.Timeout = defaultFetchTimeout
	}
	if f.BackoffBase == 0 {
		f.BackoffBase = defaultBackoffBase
	}
	if f.BackoffCap == 0 {
		f.BackoffCap = defaultBackoffCap
	}
	if f.DegradedAfter == 0 {
		f.DegradedAfter = defaultDegradedAfter
	}
	if f.ExpirySweep == 0 {
		f.ExpirySweep = defaultExpirySweep
	}
	if f.RetentionDays == 0 {
		f.RetentionDays = defaultRetentionDays
	}
}

func setScorerDefaults(s *ScorerConfig) {
	if s.Model == "" {
		s.Model = defaultOpenAIModel
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultScoreConcurrency
	}
	if s.Timeout == 0 {
		s.Timeout = defaultScoreTimeout
	}
	if s.CallsPerMinute == 0 {
		s.CallsPerMinute = defaultCallsPerMinute
	}
	if s.RescoreInterval == 0 {
		s.RescoreInterval = defaultRescoreInterval
	}
	if s.RescoreBatch == 0 {
		s.RescoreBatch = defaultRescoreBatch
	}
}
