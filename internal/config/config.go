// Package config holds the application configuration, loaded through viper
// from config.yaml and VASPIN_* environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Potentials PotentialsConfig `mapstructure:"potentials" yaml:"potentials"`
	DB         DBConfig         `mapstructure:"db" yaml:"db"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PotentialsConfig locates the potential file tree. Root falls back to the
// VASP_PP_PATH environment variable, the conventional location.
type PotentialsConfig struct {
	Root   string            `mapstructure:"root" yaml:"root"`
	Family string            `mapstructure:"family" yaml:"family"`
	Setups map[string]string `mapstructure:"setups" yaml:"setups"`
}

// ResolveRoot returns the configured potentials root, or the VASP_PP_PATH
// environment variable when unset.
func (p PotentialsConfig) ResolveRoot() string {
	if p.Root != "" {
		return p.Root
	}
	return os.Getenv("VASP_PP_PATH")
}

// DBConfig steers the result database row written next to the input deck.
type DBConfig struct {
	// ParserToken splits calculation-directory segments into key/value
	// pairs stored on the row. Empty disables directory parsing.
	ParserToken string `mapstructure:"parser_token" yaml:"parser_token"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vaspin")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("potentials.root", "")
	v.SetDefault("potentials.family", "potpaw_PBE")

	v.SetDefault("db.parser_token", "")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Logger.MaxSize < 0 || c.Logger.MaxBackups < 0 || c.Logger.MaxAge < 0 {
		return fmt.Errorf("logger rotation settings must not be negative")
	}
	return nil
}
