package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the discovery pipeline
type Config struct {
	General       GeneralConfig     `mapstructure:"general"`
	Server        ServerConfig      `mapstructure:"server"`
	Discovery     DiscoveryConfig   `mapstructure:"discovery"`
	Search        SearchConfig      `mapstructure:"search"`
	Fetch         FetchConfig       `mapstructure:"fetch"`
	Trust         TrustConfig       `mapstructure:"trust"`
	Jurisdictions []Jurisdiction    `mapstructure:"jurisdictions"`
	Directories   []DirectoryConfig `mapstructure:"directories"`
	Localities    []string          `mapstructure:"localities"`
	Storage       StorageConfig     `mapstructure:"storage"`
	Telemetry     TelemetryConfig   `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP facade and refresh scheduler settings
type ServerConfig struct {
	Address   string          `mapstructure:"address"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// SchedulerConfig controls periodic re-discovery of stale cache entries.
type SchedulerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Cron       string `mapstructure:"cron"`
	MaxRefresh int    `mapstructure:"max_refresh"`
}

// DiscoveryConfig contains the engine tunables
type DiscoveryConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AdapterTimeout  time.Duration `mapstructure:"adapter_timeout"`
	MinConfidence   float64       `mapstructure:"min_confidence"`
	BulkBatchSize   int           `mapstructure:"bulk_batch_size"`
	BulkBatchPause  time.Duration `mapstructure:"bulk_batch_pause"`
}

// Normalize applies defaults for unset discovery values.
func (d DiscoveryConfig) Normalize() DiscoveryConfig {
	if d.CacheTTL <= 0 {
		d.CacheTTL = 6 * time.Hour
	}
	if d.CacheMaxEntries <= 0 {
		d.CacheMaxEntries = 1000
	}
	if d.MaxConcurrent <= 0 {
		d.MaxConcurrent = 5
	}
	if d.WaitTimeout <= 0 {
		d.WaitTimeout = 30 * time.Second
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 2 * time.Minute
	}
	if d.AdapterTimeout <= 0 {
		d.AdapterTimeout = 20 * time.Second
	}
	if d.MinConfidence <= 0 {
		d.MinConfidence = 0.6
	}
	if d.BulkBatchSize <= 0 {
		d.BulkBatchSize = 3
	}
	if d.BulkBatchPause <= 0 {
		d.BulkBatchPause = 500 * time.Millisecond
	}
	return d
}

// Validate ensures discovery settings are coherent.
func (d DiscoveryConfig) Validate() error {
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		return fmt.Errorf("discovery.min_confidence must be within [0,1]")
	}
	if d.BulkBatchSize >= d.MaxConcurrent {
		return fmt.Errorf("discovery.bulk_batch_size must be smaller than discovery.max_concurrent")
	}
	return nil
}

// SearchConfig contains web search backend settings
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// FetchConfig contains page fetching and rendering settings
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	Retries       int           `mapstructure:"retries"`
	Backoff       time.Duration `mapstructure:"backoff"`
	MaxParallel   int           `mapstructure:"max_parallel"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// Normalize applies defaults for unset fetch values.
func (f FetchConfig) Normalize() FetchConfig {
	if f.Timeout <= 0 {
		f.Timeout = 10 * time.Second
	}
	if f.RenderTimeout <= 0 {
		f.RenderTimeout = 15 * time.Second
	}
	if f.MaxBodyBytes <= 0 {
		f.MaxBodyBytes = 1 << 20
	}
	if f.Retries <= 0 {
		f.Retries = 1
	}
	if f.Backoff <= 0 {
		f.Backoff = 300 * time.Millisecond
	}
	if f.MaxParallel <= 0 {
		f.MaxParallel = 3
	}
	if strings.TrimSpace(f.UserAgent) == "" {
		f.UserAgent = "SupplierScope/1.0 (+ops@procurehq.example)"
	}
	return f
}

// TrustConfig maps source categories to the weights used by the
// source-type trust bonus. Categories: registry, directory, social, web.
type TrustConfig struct {
	Weights map[string]float64 `mapstructure:"weights"`
}

// Normalize fills in the default category weights.
func (t TrustConfig) Normalize() TrustConfig {
	if t.Weights == nil {
		t.Weights = map[string]float64{}
	}
	defaults := map[string]float64{
		"registry":  0.5,
		"directory": 0.3,
		"social":    0.15,
		"web":       0.1,
	}
	for k, v := range defaults {
		if _, ok := t.Weights[k]; !ok {
			t.Weights[k] = v
		}
	}
	return t
}

// Jurisdiction is one entry of the data-driven identifier validation table.
// Field is the canonical field the pattern applies to (registration_number
// or tax_id); values failing the pattern are discarded as absent.
type Jurisdiction struct {
	Name    string `mapstructure:"name"`
	Field   string `mapstructure:"field"`
	Pattern string `mapstructure:"pattern"`
}

// DirectoryConfig describes one known business directory: how to build a
// lookup URL for an entity name, and which selector extracts each field.
type DirectoryConfig struct {
	Name      string            `mapstructure:"name"`
	Category  string            `mapstructure:"category"`
	SearchURL string            `mapstructure:"search_url"`
	Selectors map[string]string `mapstructure:"selectors"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	CacheBackend string      `mapstructure:"cache_backend"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

func (s StorageConfig) Validate() error {
	switch s.CacheBackend {
	case "", "memory":
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.cache_backend must be memory or redis, got %q", s.CacheBackend)
	}
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// DefaultJurisdictions is the built-in identifier validation table.
// Registration numbers follow the ZA CIPC shape, tax IDs the SARS shape.
func DefaultJurisdictions() []Jurisdiction {
	return []Jurisdiction{
		{Name: "za-cipc", Field: "registration_number", Pattern: `^\d{4}/\d{6}/\d{2}$`},
		{Name: "za-sars", Field: "tax_id", Pattern: `^9\d{9}$`},
		{Name: "za-vat", Field: "tax_id", Pattern: `^4\d{9}$`},
	}
}

// DefaultLocalities lists locality names used by the heuristic address parser.
func DefaultLocalities() []string {
	return []string{
		"Johannesburg", "Cape Town", "Durban", "Pretoria", "Port Elizabeth",
		"Gqeberha", "Bloemfontein", "East London", "Polokwane", "Nelspruit",
		"Kimberley", "Pietermaritzburg", "Sandton", "Midrand", "Centurion",
		"Stellenbosch", "Randburg", "Roodepoort", "Boksburg", "Germiston",
	}
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("server.scheduler.cron", "@hourly")
	viper.SetDefault("server.scheduler.max_refresh", 20)
	viper.SetDefault("search.provider", "static")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("storage.cache_backend", "memory")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SUPPLIERSCOPE")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (SUPPLIERSCOPE_*)

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Discovery = config.Discovery.Normalize()
	config.Fetch = config.Fetch.Normalize()
	config.Trust = config.Trust.Normalize()
	if len(config.Jurisdictions) == 0 {
		config.Jurisdictions = DefaultJurisdictions()
	}
	if len(config.Localities) == 0 {
		config.Localities = DefaultLocalities()
	}

	if err := config.Discovery.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Validate(); err != nil {
		panic(err)
	}
	return &config
}

// Default returns a config populated with built-in defaults, without
// reading any file. Used by tests and the one-shot CLI.
func Default() *Config {
	cfg := &Config{}
	cfg.Discovery = cfg.Discovery.Normalize()
	cfg.Fetch = cfg.Fetch.Normalize()
	cfg.Trust = cfg.Trust.Normalize()
	cfg.Jurisdictions = DefaultJurisdictions()
	cfg.Localities = DefaultLocalities()
	cfg.Search.Provider = "static"
	cfg.Search.MaxResults = 5
	cfg.Server.Address = ":10010"
	cfg.Server.Scheduler.Cron = "@hourly"
	cfg.Server.Scheduler.MaxRefresh = 20
	return cfg
}
