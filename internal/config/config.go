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

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Artifact source types
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

// ErrNoConfigFile is returned when no config file is found and RequireFile is set
var ErrNoConfigFile = errors.New("no config file found")

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Inference InferenceConfig `mapstructure:"inference"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// ArtifactsConfig says where the scaler and cluster model come from
type ArtifactsConfig struct {
	Source     string `mapstructure:"source"`
	Dir        string `mapstructure:"dir"`
	ScalerFile string `mapstructure:"scaler_file"`
	ModelFile  string `mapstructure:"model_file"`
	DBPath     string `mapstructure:"db_path"`
	ScalerName string `mapstructure:"scaler_name"`
	ModelName  string `mapstructure:"model_name"`
	// LoadAttempts bounds registry reads that hit a busy database
	LoadAttempts int `mapstructure:"load_attempts"`
}

// InferenceConfig contains request-path settings
type InferenceConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	HotReload  bool   `mapstructure:"hot_reload"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath  string
	RequireFile bool
	Validate    bool
}

// Load loads configuration from file and environment variables.
// A missing config file is fine; defaults and environment fill in.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath: configPath,
		Validate:   true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	found, err := setConfigFile(v, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}
	if !found && opts.RequireFile {
		return nil, ErrNoConfigFile
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SEGMENTER")

	if found {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.Validate {
		if err := validateConfig(&config); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	// Artifact defaults mirror the layout the training job writes
	v.SetDefault("artifacts.source", SourceFile)
	v.SetDefault("artifacts.dir", "models")
	v.SetDefault("artifacts.scaler_file", "scaler.json")
	v.SetDefault("artifacts.model_file", "kmeans_model.json")
	v.SetDefault("artifacts.db_path", "./models/artifacts.db")
	v.SetDefault("artifacts.scaler_name", "scaler")
	v.SetDefault("artifacts.model_name", "kmeans_model")
	v.SetDefault("artifacts.load_attempts", 3)

	v.SetDefault("inference.cache_size", 1024)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "./logs/segmenter.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.hot_reload", false)
}

// setConfigFile points viper at the config file, reporting whether one exists
func setConfigFile(v *viper.Viper, configPath string) (bool, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return false, fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return true, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return false, fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return true, nil
	}

	for _, path := range []string{"./configs/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			return true, nil
		}
	}

	return false, nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"PORT":             "server.port",
		"GIN_MODE":         "server.mode",
		"MODELS_DIR":       "artifacts.dir",
		"ARTIFACT_SOURCE":  "artifacts.source",
		"ARTIFACT_DB_PATH": "artifacts.db_path",
		"LOG_LEVEL":        "logging.level",
		"LOG_FORMAT":       "logging.format",
		"LOG_OUTPUT":       "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	validModes := []string{"debug", "release", "test"}
	if !contains(validModes, config.Server.Mode) {
		errs = append(errs, ValidationError{
			Field:   "server.mode",
			Message: fmt.Sprintf("mode must be one of: %s", strings.Join(validModes, ", ")),
		})
	}

	if config.Server.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown_timeout must not be negative",
		})
	}

	switch config.Artifacts.Source {
	case SourceFile:
		if config.Artifacts.ScalerFile == "" {
			errs = append(errs, ValidationError{Field: "artifacts.scaler_file", Message: "scaler file is required"})
		}
		if config.Artifacts.ModelFile == "" {
			errs = append(errs, ValidationError{Field: "artifacts.model_file", Message: "model file is required"})
		}
	case SourceSQLite:
		if config.Artifacts.DBPath == "" {
			errs = append(errs, ValidationError{Field: "artifacts.db_path", Message: "registry database path is required"})
		}
		if config.Artifacts.ScalerName == "" || config.Artifacts.ModelName == "" {
			errs = append(errs, ValidationError{Field: "artifacts.scaler_name", Message: "scaler and model names are required"})
		}
		if config.Artifacts.LoadAttempts < 1 {
			errs = append(errs, ValidationError{Field: "artifacts.load_attempts", Message: "load_attempts must be at least 1"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "artifacts.source",
			Message: fmt.Sprintf("source must be one of: %s, %s", SourceFile, SourceSQLite),
		})
	}

	if config.Inference.CacheSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "inference.cache_size",
			Message: "cache_size must be greater than or equal to 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validOutputs, config.Logging.Output) {
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("log output must be one of: %s", strings.Join(validOutputs, ", ")),
		})
	}
	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "file_path is required when output is file",
		})
	}

	if len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return errors.Join(joined...)
	}

	return nil
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig reloads the configuration whenever the file changes and passes the
// result to callback. Reloads that fail validation are reported through onError.
func WatchConfig(configPath string, callback func(*Config), onError func(error)) error {
	v := viper.New()

	found, err := setConfigFile(v, configPath)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoConfigFile
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		config, err := LoadWithOptions(LoadOptions{ConfigPath: v.ConfigFileUsed(), Validate: true})
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		callback(config)
	})
	v.WatchConfig()

	return nil
}
