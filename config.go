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

package rondo

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rondolabs/rondo/escrow"
	"github.com/rondolabs/rondo/oracle"
)

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	yieldAdapter    escrow.YieldAdapter
	randomSource    oracle.RandomSource
	dataDir         string
	owner           string
	yieldRatePPM    int64
	shutdownTimeout time.Duration
	auditLog        bool
}

func (n *Node) configValidate() error {
	if n.config.owner == "" {
		return errors.New("no owner defined")
	}
	if n.config.yieldRatePPM < 0 {
		return errors.New("yield rate must not be negative")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the engine config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new rondo config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		auditLog: true,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithOwner specifies the administrative owner principal. The owner can pause
// the engine, transfer ownership, and perform emergency withdrawals
func WithOwner(owner string) ConfigOptionFunc {
	return func(c *Config) {
		c.owner = owner
	}
}

// WithYieldAdapter specifies the money-market integration used to generate
// yield on escrowed funds. The default is a built-in linear adapter
func WithYieldAdapter(adapter escrow.YieldAdapter) ConfigOptionFunc {
	return func(c *Config) {
		c.yieldAdapter = adapter
	}
}

// WithYieldRatePPM specifies the accrual rate for the built-in linear yield
// adapter, in parts-per-million of parked principal per second. Ignored when
// a yield adapter is provided
func WithYieldRatePPM(rate int64) ConfigOptionFunc {
	return func(c *Config) {
		c.yieldRatePPM = rate
	}
}

// WithRandomSource specifies the verifiable randomness source used for
// no-bid winner selection. The default is a local entropy source
func WithRandomSource(source oracle.RandomSource) ConfigOptionFunc {
	return func(c *Config) {
		c.randomSource = source
	}
}

// WithAuditLog specifies whether to record all events to the sqlite audit
// index. Enabled by default
func WithAuditLog(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.auditLog = enabled
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
