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
	"math"
)

// KMeans is a fitted k-means partition. A vector belongs to the cluster of its
// nearest centroid.
type KMeans struct {
	centers [][]float64
	dims    int
}

// NewKMeans creates a k-means model from fitted cluster centers
func NewKMeans(centers [][]float64) (*KMeans, error) {
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: no cluster centers", ErrInvalidParameters)
	}
	dims := len(centers[0])
	if dims == 0 {
		return nil, fmt.Errorf("%w: cluster centers have no dimensions", ErrInvalidParameters)
	}

	km := &KMeans{centers: make([][]float64, len(centers)), dims: dims}
	for i, c := range centers {
		if err := checkVector(c, dims); err != nil {
			return nil, fmt.Errorf("%w: center %d: %v", ErrInvalidParameters, i, err)
		}
		km.centers[i] = append([]float64(nil), c...)
	}
	return km, nil
}

// Predict implements ClusterModel. Ties resolve to the lowest label.
func (km *KMeans) Predict(features []float64) (int, error) {
	if err := checkVector(features, km.dims); err != nil {
		return 0, err
	}

	best := -1
	bestDist := math.Inf(1)
	for i, c := range km.centers {
		d := squaredDistance(features, c)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	// Every distance overflowed, so no centroid is nearer than another
	if best < 0 {
		return 0, fmt.Errorf("%w: distance to every cluster center overflows", ErrNonFinite)
	}
	return best, nil
}

// NumClusters implements ClusterModel
func (km *KMeans) NumClusters() int {
	return len(km.centers)
}

// Dimensions implements ClusterModel
func (km *KMeans) Dimensions() int {
	return km.dims
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
