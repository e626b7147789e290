// Copyright 2024 Customer Segmenter Project
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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/your-org/customer-segmenter/internal/config"
	"github.com/your-org/customer-segmenter/internal/health"
	"github.com/your-org/customer-segmenter/internal/inference"
	"github.com/your-org/customer-segmenter/internal/logging"
	"github.com/your-org/customer-segmenter/internal/webui"
	"go.uber.org/zap"
)

const serviceName = "customer-segmenter"

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the artifacts and serve the segmentation form",
		Long: `Loads the fitted scaler and cluster model once, then serves:

  GET  /                 the input form
  POST /                 classify a form submission
  POST /api/v1/predict   classify a JSON or form body
  GET  /health           readiness of the loaded model`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *configPath)
		},
	}
}

// runServe blocks until ctx is cancelled. The server never starts if the
// artifacts cannot be loaded.
func runServe(ctx context.Context, configPath string) error {
	rt, err := setup(configPath, false)
	if err != nil {
		return err
	}
	defer syncLogger(rt.logger)

	gin.SetMode(rt.cfg.Server.Mode)

	server, cleanup, err := buildServer(ctx, rt)
	if err != nil {
		rt.logger.Error("Startup failed", zap.Error(err))
		return err
	}
	defer cleanup()

	if rt.cfg.Logging.HotReload {
		watchLogLevel(configPath, rt)
	}

	return server.Run(ctx, rt.cfg.Server)
}

// buildServer loads the pipeline and wires the service, health checks and router
func buildServer(ctx context.Context, rt *runtime) (*webui.Server, func(), error) {
	source, registry, err := openSource(rt.cfg, rt.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact source: %w", err)
	}
	cleanup := func() { closeRegistry(registry, rt.logger) }

	rt.logger.Info("Loading artifacts", zap.String("source", source.Describe()))
	pipeline, err := source.Load(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load artifacts: %w", err)
	}

	svc, err := inference.NewService(pipeline, inference.Options{CacheSize: rt.cfg.Inference.CacheSize}, rt.logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	healthManager := health.NewManager(serviceName, version, rt.logger)
	healthManager.AddChecker("model", health.ModelChecker(source.Describe(), svc.NumClusters))
	if registry != nil {
		healthManager.AddChecker("registry", health.DatabaseChecker("artifact registry", registry.Ping))
	}

	server, err := webui.NewServer(svc, healthManager, rt.logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return server, cleanup, nil
}

// watchLogLevel applies logging.level changes from the config file without a restart
func watchLogLevel(configPath string, rt *runtime) {
	err := config.WatchConfig(configPath,
		func(cfg *config.Config) {
			level := logging.ParseLevel(cfg.Logging.Level)
			if level != rt.level.Level() {
				rt.logger.Info("Log level changed",
					zap.String("from", rt.level.Level().String()),
					zap.String("to", level.String()))
				rt.level.SetLevel(level)
			}
		},
		func(err error) {
			rt.logger.Warn("Ignoring invalid configuration reload", zap.Error(err))
		},
	)
	if errors.Is(err, config.ErrNoConfigFile) {
		rt.logger.Warn("Hot reload enabled but no config file to watch")
		return
	}
	if err != nil {
		rt.logger.Warn("Failed to watch configuration", zap.Error(err))
	}
}
