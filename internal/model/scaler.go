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
	"fmt"
)

// StandardScaler centers each feature on its fitted mean and divides by its fitted scale
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler creates a standard scaler from fitted parameters.
// A zero scale is treated as 1, matching how constant features are fitted.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("%w: mean is empty", ErrInvalidParameters)
	}
	if len(scale) != len(mean) {
		return nil, fmt.Errorf("%w: mean has %d values but scale has %d", ErrInvalidParameters, len(mean), len(scale))
	}
	if err := checkVector(mean, len(mean)); err != nil {
		return nil, fmt.Errorf("%w: mean: %v", ErrInvalidParameters, err)
	}
	if err := checkVector(scale, len(scale)); err != nil {
		return nil, fmt.Errorf("%w: scale: %v", ErrInvalidParameters, err)
	}

	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// Transform implements Scaler
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if err := checkVector(features, len(s.mean)); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

// Dimensions implements Scaler
func (s *StandardScaler) Dimensions() int {
	return len(s.mean)
}

// MinMaxScaler maps each feature linearly so the fitted minimum lands on 0 and the maximum on 1
type MinMaxScaler struct {
	min   []float64
	width []float64
}

// NewMinMaxScaler creates a min-max scaler from fitted per-feature bounds
func NewMinMaxScaler(mins, maxs []float64) (*MinMaxScaler, error) {
	if len(mins) == 0 {
		return nil, fmt.Errorf("%w: min is empty", ErrInvalidParameters)
	}
	if len(maxs) != len(mins) {
		return nil, fmt.Errorf("%w: min has %d values but max has %d", ErrInvalidParameters, len(mins), len(maxs))
	}
	if err := checkVector(mins, len(mins)); err != nil {
		return nil, fmt.Errorf("%w: min: %v", ErrInvalidParameters, err)
	}
	if err := checkVector(maxs, len(maxs)); err != nil {
		return nil, fmt.Errorf("%w: max: %v", ErrInvalidParameters, err)
	}

	s := &MinMaxScaler{
		min:   append([]float64(nil), mins...),
		width: make([]float64, len(mins)),
	}
	for i := range mins {
		if maxs[i] < mins[i] {
			return nil, fmt.Errorf("%w: max below min at index %d", ErrInvalidParameters, i)
		}
		w := maxs[i] - mins[i]
		if w == 0 {
			w = 1
		}
		s.width[i] = w
	}
	return s, nil
}

// Transform implements Scaler. Values outside the fitted range are not clipped.
func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if err := checkVector(features, len(s.min)); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.min[i]) / s.width[i]
	}
	return out, nil
}

// Dimensions implements Scaler
func (s *MinMaxScaler) Dimensions() int {
	return len(s.min)
}
