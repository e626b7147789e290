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

// Package model provides the fitted feature scalers and the k-means cluster model
// used to segment customers, plus the transform-then-predict pipeline that binds them.
package model

import (
	"errors"
	"fmt"
	"math"
)

// NumFeatures is the dimension of a raw customer feature vector
const NumFeatures = 3

var (
	// ErrDimensionMismatch is returned when a vector does not match the fitted dimension
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	// ErrNonFinite is returned when a vector contains NaN or infinite values
	ErrNonFinite = errors.New("non-finite feature value")
	// ErrInvalidParameters is returned when fitted parameters cannot form a usable model
	ErrInvalidParameters = errors.New("invalid model parameters")
)

// FeatureNames returns the ordered names of the raw customer features
func FeatureNames() []string {
	return []string{"age", "income", "spending"}
}

// Scaler maps a raw feature vector to a normalized one
type Scaler interface {
	Transform(features []float64) ([]float64, error)
	Dimensions() int
}

// ClusterModel assigns a normalized feature vector to a cluster label in [0, NumClusters())
type ClusterModel interface {
	Predict(features []float64) (int, error)
	NumClusters() int
	Dimensions() int
}

// checkVector validates the length and finiteness of a vector
func checkVector(features []float64, dims int) error {
	if len(features) != dims {
		return fmt.Errorf("%w: expected %d values, got %d", ErrDimensionMismatch, dims, len(features))
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}
