// Copyright 2025 Rondo Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "rondo.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DataDir         string `yaml:"dataDir"         split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	Owner           string `yaml:"owner"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	// YieldRatePPM is the per-second yield accrual rate for the built-in
	// linear adapter, in parts-per-million of parked principal
	YieldRatePPM int64 `yaml:"yieldRatePpm" envconfig:"RONDO_YIELD_RATE_PPM"`
	MetricsPort  uint  `yaml:"metricsPort"  split_words:"true"`
}

var globalConfig = &Config{
	DataDir:         ".rondo",
	BindAddr:        "0.0.0.0",
	Owner:           "admin",
	ShutdownTimeout: DefaultShutdownTimeout,
	YieldRatePPM:    0,
	MetricsPort:     12798,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.rondo/rondo.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".rondo", "rondo.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/rondo/rondo.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/rondo/rondo.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("rondo", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if globalConfig.YieldRatePPM < 0 {
		return nil, fmt.Errorf(
			"invalid yield rate: %d (must not be negative)",
			globalConfig.YieldRatePPM,
		)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
