package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting needed to boot the churn-triage service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Features  FeaturesConfig  `yaml:"features"`
	Segments  SegmentsConfig  `yaml:"segments"`
	Auth      AuthConfig      `yaml:"auth"`
	Generator GeneratorConfig `yaml:"generator"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Events    EventsConfig    `yaml:"events"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls HTTP, gRPC, and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// ArtifactsConfig points at the pre-trained classifier and threshold files.
type ArtifactsConfig struct {
	ModelPath      string `yaml:"modelPath"`
	ThresholdsPath string `yaml:"thresholdsPath"`
}

// FeaturesConfig lists the columns the reconciler guarantees before scoring.
type FeaturesConfig struct {
	IDColumn    string   `yaml:"idColumn"`
	Numeric     []string `yaml:"numeric"`
	Categorical []string `yaml:"categorical"`
}

// SegmentsConfig bounds segment views.
type SegmentsConfig struct {
	TopN         int `yaml:"topN"`
	StrategyTopN int `yaml:"strategyTopN"`
}

// AuthConfig holds the single operator credential and token settings.
type AuthConfig struct {
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
	Disabled  bool          `yaml:"disabled"`
}

// GeneratorConfig configures the text-generation endpoint used for strategies.
type GeneratorConfig struct {
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey"`
	Models  []string      `yaml:"models"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls Valkey-backed caching of generated strategies.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	TLS         bool          `yaml:"tls"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	StrategyTTL time.Duration `yaml:"strategyTTL"`
}

// StorageConfig selects the run store.
type StorageConfig struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"maxConns"`
	MigrationsPath string `yaml:"migrationsPath"`
	AutoMigrate    bool   `yaml:"autoMigrate"`
}

// EventsConfig controls publication of scoring events to Kafka.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// TracingConfig controls the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
	Insecure    bool   `yaml:"insecure"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CHURN_TRIAGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultNumericFeatures are the numeric columns the classifier was trained on.
var DefaultNumericFeatures = []string{
	"spent_m1", "spent_m2", "spent_m3", "spent_m4", "spent_m5", "spent_m6",
	"marketing_open_rate_6m", "tenure_months", "complaints_6m", "age",
	"login_m1", "login_m2", "login_m3",
	"txn_m1", "txn_m2", "txn_m3",
}

// DefaultCategoricalFeatures are the categorical columns the classifier was trained on.
var DefaultCategoricalFeatures = []string{"gender", "region", "income_band", "card_grade"}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173"},
			MaxUploadBytes:  32 << 20,
		},
		Artifacts: ArtifactsConfig{
			ModelPath:      "models/final_churn_model.yaml",
			ThresholdsPath: "models/risk_thresholds.yaml",
		},
		Features: FeaturesConfig{
			IDColumn:    "customer_id",
			Numeric:     append([]string(nil), DefaultNumericFeatures...),
			Categorical: append([]string(nil), DefaultCategoricalFeatures...),
		},
		Segments: SegmentsConfig{TopN: 50, StrategyTopN: 300},
		Auth: AuthConfig{
			Username: "admin",
			Password: "1234",
			TokenTTL: 8 * time.Hour,
		},
		Generator: GeneratorConfig{
			BaseURL: "https://api.openai.com",
			Models:  []string{"gpt-4.1-mini", "gpt-4.1-nano"},
			Timeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			KeyPrefix:   "churn-triage:",
			DialTimeout: 2 * time.Second,
			StrategyTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:         "memory",
			MaxConns:       10,
			MigrationsPath: "migrations",
		},
		Events:  EventsConfig{Topic: "churn.scored"},
		Tracing: TracingConfig{ServiceName: "churn-triage", Insecure: true},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Features.IDColumn) == "" {
		return errors.New("features.idColumn must not be empty")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return errors.New("events.brokers is required when events are enabled")
	}
	if c.Segments.TopN <= 0 {
		c.Segments.TopN = 50
	}
	if c.Segments.StrategyTopN <= 0 {
		c.Segments.StrategyTopN = 300
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHURN_TRIAGE_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("CHURN_TRIAGE_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("CHURN_TRIAGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("CHURN_TRIAGE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("CHURN_TRIAGE_MODEL_PATH"); v != "" {
		cfg.Artifacts.ModelPath = v
	}
	if v := os.Getenv("CHURN_TRIAGE_THRESHOLDS_PATH"); v != "" {
		cfg.Artifacts.ThresholdsPath = v
	}
	if v := os.Getenv("CHURN_TRIAGE_ID_COLUMN"); v != "" {
		cfg.Features.IDColumn = v
	}
	if v := os.Getenv("CHURN_TRIAGE_AUTH_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("CHURN_TRIAGE_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("CHURN_TRIAGE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CHURN_TRIAGE_AUTH_DISABLED"); v != "" {
		cfg.Auth.Disabled = parseBool(v)
	}
	if v := os.Getenv("CHURN_TRIAGE_GENERATOR_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
	if v := os.Getenv("GPT_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("CHURN_TRIAGE_GENERATOR_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("CHURN_TRIAGE_GENERATOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Generator.Timeout = d
		}
	}
	if v := os.Getenv("CHURN_TRIAGE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CHURN_TRIAGE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("CHURN_TRIAGE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("CHURN_TRIAGE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("CHURN_TRIAGE_CACHE_STRATEGY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.StrategyTTL = d
		}
	}
	if v := os.Getenv("CHURN_TRIAGE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("CHURN_TRIAGE_DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("CHURN_TRIAGE_AUTO_MIGRATE"); v != "" {
		cfg.Storage.AutoMigrate = parseBool(v)
	}
	if v := os.Getenv("CHURN_TRIAGE_KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = splitList(v)
		cfg.Events.Enabled = true
	}
	if v := os.Getenv("CHURN_TRIAGE_KAFKA_TOPIC"); v != "" {
		cfg.Events.Topic = v
	}
	if v := os.Getenv("CHURN_TRIAGE_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
		cfg.Tracing.Enabled = true
	}
	if v := os.Getenv("CHURN_TRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHURN_TRIAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
