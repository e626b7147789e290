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

// Package inference turns submitted customer attributes into a cluster assignment.
// It owns input validation, the error taxonomy surfaced to users and the
// prediction cache in front of the model pipeline.
package inference

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/your-org/customer-segmenter/internal/model"
	"go.uber.org/zap"
)

// Result is a successful classification
type Result struct {
	Cluster  int      `json:"cluster"`
	Message  string   `json:"message"`
	Features Features `json:"features"`
	Cached   bool     `json:"-"`
}

// ResultMessage formats the user-facing line for a cluster label
func ResultMessage(cluster int) string {
	return fmt.Sprintf("The customer belongs to Cluster %d", cluster)
}

// Options configures a Service
type Options struct {
	// CacheSize bounds the number of memoized classifications; 0 disables caching
	CacheSize int
}

// Service classifies customers with a fixed pipeline
type Service struct {
	pipeline *model.Pipeline
	cache    *lru.Cache[Features, int]
	logger   *zap.Logger
}

// NewService creates a service around a loaded pipeline
func NewService(pipeline *model.Pipeline, opts Options, logger *zap.Logger) (*Service, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if opts.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative, got %d", opts.CacheSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{pipeline: pipeline, logger: logger}
	if opts.CacheSize > 0 {
		cache, err := lru.New[Features, int](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// NumClusters returns the number of labels the loaded model can produce
func (s *Service) NumClusters() int {
	return s.pipeline.NumClusters()
}

// Classify assigns the customer to a cluster. Errors are *ValidationError or *InferenceError.
func (s *Service) Classify(ctx context.Context, f Features) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cluster, ok := s.cache.Get(f); ok {
			return &Result{Cluster: cluster, Message: ResultMessage(cluster), Features: f, Cached: true}, nil
		}
	}

	cluster, err := s.run(f.Vector())
	if err != nil {
		s.logger.Error("Classification failed",
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Error(err))
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(f, cluster)
	}

	return &Result{Cluster: cluster, Message: ResultMessage(cluster), Features: f}, nil
}

// ClassifyForm parses the submitted fields and classifies them
func (s *Service) ClassifyForm(ctx context.Context, lookup LookupFunc) (*Result, error) {
	f, err := ParseFeatures(lookup)
	if err != nil {
		return nil, err
	}
	return s.Classify(ctx, f)
}

// run executes both pipeline stages, converting failures and panics into InferenceError
func (s *Service) run(vector []float64) (cluster int, err error) {
	stage := StageTransform
	defer func() {
		if r := recover(); r != nil {
			err = &InferenceError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	scaled, err := s.pipeline.Transform(vector)
	if err != nil {
		return 0, &InferenceError{Stage: StageTransform, Err: err}
	}

	stage = StagePredict
	cluster, err = s.pipeline.Predict(scaled)
	if err != nil {
		return 0, &InferenceError{Stage: StagePredict, Err: err}
	}
	if cluster < 0 || cluster >= s.pipeline.NumClusters() {
		return 0, &InferenceError{
			Stage: StagePredict,
			Err:   fmt.Errorf("label %d outside [0, %d)", cluster, s.pipeline.NumClusters()),
		}
	}

	return cluster, nil
}

type requestIDKey struct{}

// WithRequestID attaches a request ID for log correlation
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID attached by WithRequestID, if any
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
