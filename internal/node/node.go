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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rondolabs/rondo"
	"github.com/rondolabs/rondo/internal/config"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")

	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second // Default timeout
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}

	r, err := rondo.New(
		rondo.NewConfig(
			rondo.WithLogger(logger),
			rondo.WithDataDir(cfg.DataDir),
			rondo.WithOwner(cfg.Owner),
			rondo.WithYieldRatePPM(cfg.YieldRatePPM),
			rondo.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			rondo.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}
	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component",
		"node",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run engine in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := r.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")

		// Shutdown metrics server
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		// Shutdown engine
		if err := r.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("engine stopped")
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
			if err := r.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("engine error", "error", err)
		signalCtxStop()

		if stopErr := r.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}

		return err
	}
}
