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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/your-org/customer-segmenter/internal/artifact"
	"github.com/your-org/customer-segmenter/internal/config"
	"github.com/your-org/customer-segmenter/internal/logging"
	"github.com/your-org/customer-segmenter/internal/resilience"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. --config is shared by every subcommand.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "segmenter",
		Short:        "Assign customers to market segments",
		Long:         `Serves a web form and JSON API that assign a customer to a k-means cluster from age, income and spending score.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newPredictCmd(&configPath),
		newArtifactsCmd(&configPath),
	)

	return rootCmd
}

// runtime holds what every command needs after startup
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	level  zap.AtomicLevel
}

// setup loads configuration and builds the logger. Commands that print results
// keep stdout clean by logging to stderr.
func setup(configPath string, quietStdout bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := cfg.Logging
	if quietStdout && logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}

	logger, level, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, level: level}, nil
}

// openSource returns the configured artifact source. The returned registry is
// nil for file sources and must be closed by the caller otherwise.
func openSource(cfg *config.Config, logger *zap.Logger) (artifact.Source, *artifact.Registry, error) {
	switch cfg.Artifacts.Source {
	case config.SourceSQLite:
		registry, err := artifact.OpenRegistry(cfg.Artifacts.DBPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return &artifact.RegistrySource{
			Registry:   registry,
			ScalerName: cfg.Artifacts.ScalerName,
			ModelName:  cfg.Artifacts.ModelName,
			Retry:      retryPolicy(cfg.Artifacts.LoadAttempts),
			Logger:     logger,
		}, registry, nil
	default:
		return &artifact.FileSource{
			Dir:        cfg.Artifacts.Dir,
			ScalerFile: cfg.Artifacts.ScalerFile,
			ModelFile:  cfg.Artifacts.ModelFile,
			Logger:     logger,
		}, nil, nil
	}
}

func retryPolicy(attempts int) resilience.Policy {
	policy := resilience.DefaultPolicy()
	policy.Attempts = attempts
	return policy
}

func closeRegistry(registry *artifact.Registry, logger *zap.Logger) {
	if registry == nil {
		return
	}
	if err := registry.Close(); err != nil {
		logger.Warn("Failed to close artifact registry", zap.Error(err))
	}
}

func syncLogger(logger *zap.Logger) {
	_ = logger.Sync()
}
