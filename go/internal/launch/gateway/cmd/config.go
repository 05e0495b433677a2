package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/launchpad/go/internal/users"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML file for the gateway
type Config struct {
	// TokenKey is the hex signing key; TOKEN_KEY overrides it
	TokenKey       string                    `yaml:"token_key"`
	AllowedOrigins []string                  `yaml:"allowed_origins"`
	Users          []users.CreateUserRequest `yaml:"users"`
	Countdown      CountdownConfig           `yaml:"countdown"`
	Redis          RedisConfig               `yaml:"redis"`
}

type CountdownConfig struct {
	Field        string        `yaml:"field"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func loadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
