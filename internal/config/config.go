package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the wizegraph.json configuration file
type Config struct {
	MongoURI string      `json:"mongoUri"`
	Database string      `json:"database"`
	Port     int         `json:"port"`
	Redis    RedisConfig `json:"redis"`
	LogLevel string      `json:"logLevel"`
}

// RedisConfig contains event broker configuration. An empty address means
// events stay in-process.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LoadConfig loads the wizegraph.json configuration from the current directory or a parent directory
func LoadConfig() (*Config, string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return loadConfigFromDir(dir)
}

// LoadConfigFromPath loads the wizegraph.json configuration from a specific path
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// Default returns a configuration with every default applied, for running
// without a wizegraph.json.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.MongoURI == "" {
		config.MongoURI = "mongodb://localhost:27017"
	}
	if config.Database == "" {
		config.Database = "wize-data"
	}
	if config.Port == 0 {
		config.Port = 4000
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// loadConfigFromDir searches for wizegraph.json in the given directory and its parents
func loadConfigFromDir(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, "wizegraph.json")
		if _, err := os.Stat(configPath); err == nil {
			config, err := LoadConfigFromPath(configPath)
			if err != nil {
				return nil, "", err
			}
			return config, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}

	return nil, "", fmt.Errorf("no wizegraph.json found in %s or any parent directory", startDir)
}
