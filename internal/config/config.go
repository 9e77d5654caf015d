// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override (PATHTAINT_ENGINE_MAX_ITERATIONS).
const EnvPrefix = "PATHTAINT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Engine() EngineConfig
	Catalog() CatalogConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)

	// Engine Setters
	SetEngineWorkerConcurrency(int)
	SetEngineMaxIterations(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	CatalogCfg  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	// ScanCfg gets its marching orders from CLI flags, not the config file.
	ScanCfg ScanConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Catalog() CatalogConfig   { return c.CatalogCfg }
func (c *Config) Scan() ScanConfig         { return c.ScanCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetScanConfig(sc ScanConfig) { c.ScanCfg = sc }

// Engine Setters
func (c *Config) SetEngineWorkerConcurrency(w int) { c.EngineCfg.WorkerConcurrency = w }
func (c *Config) SetEngineMaxIterations(n int)     { c.EngineCfg.MaxIterations = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// EngineConfig bounds the analysis.
type EngineConfig struct {
	WorkerConcurrency int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	MaxIterations     int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	FunctionTimeout   time.Duration `mapstructure:"function_timeout" yaml:"function_timeout"`
	MaxSummaryRounds  int           `mapstructure:"max_summary_rounds" yaml:"max_summary_rounds"`
	FileTimeout       time.Duration `mapstructure:"file_timeout" yaml:"file_timeout"`
}

// CatalogConfig selects the source/sink tables.
type CatalogConfig struct {
	// Files are extra YAML catalogs layered over the defaults.
	Files           []string `mapstructure:"files" yaml:"files"`
	DisableDefaults bool     `mapstructure:"disable_defaults" yaml:"disable_defaults"`
}

// ScanConfig is filled from the command line of `pathtaint scan`.
type ScanConfig struct {
	Targets    []string
	Output     string
	Format     string
	GitTracked bool
	Persist    bool
	Progress   bool
}

// NewDefaultConfig returns the built-in configuration.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pathtaint")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.worker_concurrency", 8)
	v.SetDefault("engine.max_iterations", 256)
	v.SetDefault("engine.function_timeout", "10s")
	v.SetDefault("engine.max_summary_rounds", 8)
	v.SetDefault("engine.file_timeout", "2m")

	// -- Catalog --
	v.SetDefault("catalog.files", []string{})
	v.SetDefault("catalog.disable_defaults", false)

	// -- Database --
	v.SetDefault("database.url", "")
}

// BindEnvironment wires PATHTAINT_* variables to their keys.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The connection string usually carries a password.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
}

// NewConfigFromViper decodes and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for i, f := range cfg.CatalogCfg.Files {
		expanded, err := homedir.Expand(f)
		if err != nil {
			return nil, fmt.Errorf("catalog.files[%d]: %w", i, err)
		}
		cfg.CatalogCfg.Files[i] = expanded
	}
	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and names the offending key.
func (c *Config) Validate() error {
	if c.EngineCfg.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if c.EngineCfg.MaxIterations <= 0 {
		return fmt.Errorf("engine.max_iterations must be a positive integer")
	}
	if c.EngineCfg.MaxSummaryRounds <= 0 {
		return fmt.Errorf("engine.max_summary_rounds must be a positive integer")
	}
	if c.EngineCfg.FunctionTimeout <= 0 {
		return fmt.Errorf("engine.function_timeout must be a positive duration")
	}
	if c.EngineCfg.FileTimeout <= 0 {
		return fmt.Errorf("engine.file_timeout must be a positive duration")
	}
	if c.CatalogCfg.DisableDefaults && len(c.CatalogCfg.Files) == 0 {
		return fmt.Errorf("catalog.disable_defaults requires at least one entry in catalog.files")
	}
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.LoggerCfg.Format)
	}
	return nil
}
