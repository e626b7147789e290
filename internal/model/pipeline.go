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

package model

import (
	"errors"
	"fmt"
)

// Pipeline scales a raw feature vector and assigns it to a cluster.
// It is immutable after construction and safe for concurrent use.
type Pipeline struct {
	scaler Scaler
	model  ClusterModel
}

// NewPipeline binds a scaler to a cluster model after checking their dimensions agree
func NewPipeline(scaler Scaler, model ClusterModel) (*Pipeline, error) {
	if scaler == nil {
		return nil, errors.New("scaler is required")
	}
	if model == nil {
		return nil, errors.New("cluster model is required")
	}
	if scaler.Dimensions() != model.Dimensions() {
		return nil, fmt.Errorf("%w: scaler has %d features but model expects %d",
			ErrDimensionMismatch, scaler.Dimensions(), model.Dimensions())
	}
	if model.NumClusters() < 1 {
		return nil, fmt.Errorf("%w: model has no clusters", ErrInvalidParameters)
	}
	return &Pipeline{scaler: scaler, model: model}, nil
}

// Transform runs the scaler stage
func (p *Pipeline) Transform(features []float64) ([]float64, error) {
	return p.scaler.Transform(features)
}

// Predict runs the cluster model stage on an already scaled vector
func (p *Pipeline) Predict(scaled []float64) (int, error) {
	return p.model.Predict(scaled)
}

// NumClusters returns the number of labels the model can produce
func (p *Pipeline) NumClusters() int {
	return p.model.NumClusters()
}

// Dimensions returns the raw feature dimension the pipeline accepts
func (p *Pipeline) Dimensions() int {
	return p.scaler.Dimensions()
}
