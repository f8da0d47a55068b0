package web

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rk-analyzer/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Server   ServerConfig  `json:"server"`
	Auth     AuthConfig    `json:"auth"`
	Features FeatureConfig `json:"features"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port          int    `json:"port"`
	Host          string `json:"host"`
	AllowedOrigin string `json:"allowed_origin"`
}

// Addr is the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	APIKey string `json:"api_key"`
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	AnalyzeEnabled bool `json:"analyze_enabled"`
}

// LoadConfig loads configuration from a JSON file on top of the defaults
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid web config %s: %w", filename, err)
	}
	return cfg, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8080,
			Host:          "0.0.0.0",
			AllowedOrigin: "*",
		},
		Features: FeatureConfig{
			AnalyzeEnabled: true,
		},
	}
}

// ConfigFromSettings builds the web configuration from process settings
func ConfigFromSettings(s config.ServerConfig) *Config {
	cfg := DefaultConfig()
	cfg.Server.Host = s.Host
	cfg.Server.Port = s.Port
	if s.AllowedOrigin != "" {
		cfg.Server.AllowedOrigin = s.AllowedOrigin
	}
	cfg.Auth.APIKey = s.APIKey
	cfg.Features.AnalyzeEnabled = s.AnalyzeEnabled
	return cfg
}
