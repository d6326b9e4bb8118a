// Package config loads the lodi command configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DbName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type MatchingConfig struct {
	MatchThreshold            float64 `yaml:"match_threshold"`
	GoogleConfidenceThreshold float64 `yaml:"google_confidence_threshold"`
	Workers                   int     `yaml:"workers"`
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	LogLevel string `yaml:"log_level"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Matching MatchingConfig `yaml:"matching"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns a Config populated with the defaults used for any key
// the file leaves out.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			DbName:  "geolocation",
			SSLMode: "disable",
		},
		Matching: MatchingConfig{
			MatchThreshold:            0.85,
			GoogleConfidenceThreshold: 0.8,
			Workers:                   runtime.NumCPU(),
		},
		Cache: CacheConfig{Dir: "./lodi-cache"},
		Log:   LogConfig{LogLevel: "INFO"},
	}
}

// LoadEnv loads the given .env files into the process environment. Missing
// files are ignored; variables already set are not overridden.
func LoadEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the YAML file at path, expanding ${VAR} references from the
// environment, on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(file)
}

// Parse decodes YAML config data on top of Default and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the matching parameters.
func (c *Config) Validate() error {
	m := c.Matching
	if m.MatchThreshold <= 0 || m.MatchThreshold >= 1 {
		return fmt.Errorf("%w: match_threshold %v must be in (0,1)", ErrInvalidConfig, m.MatchThreshold)
	}
	if m.GoogleConfidenceThreshold < 0 || m.GoogleConfidenceThreshold > 1 {
		return fmt.Errorf("%w: google_confidence_threshold %v must be in [0,1]", ErrInvalidConfig, m.GoogleConfidenceThreshold)
	}
	if m.Workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", ErrInvalidConfig, m.Workers)
	}
	return nil
}
