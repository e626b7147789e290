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

// Package artifact loads the pre-trained scaler and cluster model that back the
// segmentation pipeline. Artifacts are read from files or from a SQLite registry.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/your-org/customer-segmenter/internal/model"
	"gopkg.in/yaml.v3"
)

// Format identifies how an artifact document is encoded
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Kind identifies what an artifact document describes
type Kind string

const (
	KindStandardScaler Kind = "standard_scaler"
	KindMinMaxScaler   Kind = "minmax_scaler"
	KindKMeans         Kind = "kmeans"
)

var (
	// ErrUnsupportedFormat is returned for artifact encodings other than JSON or YAML
	ErrUnsupportedFormat = errors.New("unsupported artifact format")
	// ErrUnsupportedKind is returned when a document kind has no model implementation
	ErrUnsupportedKind = errors.New("unsupported artifact kind")
	// ErrWrongKind is returned when a scaler is expected but a model was supplied, or vice versa
	ErrWrongKind = errors.New("artifact has the wrong kind")
)

// Document is the serialized form of a fitted scaler or cluster model
type Document struct {
	Kind           Kind        `json:"kind" yaml:"kind"`
	FeatureNames   []string    `json:"feature_names,omitempty" yaml:"feature_names,omitempty"`
	Mean           []float64   `json:"mean,omitempty" yaml:"mean,omitempty"`
	Scale          []float64   `json:"scale,omitempty" yaml:"scale,omitempty"`
	Min            []float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max            []float64   `json:"max,omitempty" yaml:"max,omitempty"`
	ClusterCenters [][]float64 `json:"cluster_centers,omitempty" yaml:"cluster_centers,omitempty"`
}

// FormatFromPath picks the document format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseFormat validates a stored format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// Decode parses an artifact document
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode JSON artifact: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML artifact: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if doc.Kind == "" {
		return nil, fmt.Errorf("%w: kind is missing", ErrUnsupportedKind)
	}
	return &doc, nil
}

// Encode serializes an artifact document
func Encode(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// IsScaler reports whether the document describes a scaler
func (d *Document) IsScaler() bool {
	return d.Kind == KindStandardScaler || d.Kind == KindMinMaxScaler
}

// Scaler builds the fitted scaler the document describes
func (d *Document) Scaler() (model.Scaler, error) {
	if err := d.checkFeatureNames(); err != nil {
		return nil, err
	}

	switch d.Kind {
	case KindStandardScaler:
		return model.NewStandardScaler(d.Mean, d.Scale)
	case KindMinMaxScaler:
		return model.NewMinMaxScaler(d.Min, d.Max)
	case KindKMeans:
		return nil, fmt.Errorf("%w: expected a scaler, got %s", ErrWrongKind, d.Kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, d.Kind)
	}
}

// ClusterModel builds the fitted cluster model the document describes
func (d *Document) ClusterModel() (model.ClusterModel, error) {
	switch d.Kind {
	case KindKMeans:
		return model.NewKMeans(d.ClusterCenters)
	case KindStandardScaler, KindMinMaxScaler:
		return nil, fmt.Errorf("%w: expected a cluster model, got %s", ErrWrongKind, d.Kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, d.Kind)
	}
}

// checkFeatureNames rejects scalers fitted on columns in a different order.
// Documents without names are accepted as-is.
func (d *Document) checkFeatureNames() error {
	if len(d.FeatureNames) == 0 {
		return nil
	}
	expected := model.FeatureNames()
	if len(d.FeatureNames) != len(expected) {
		return fmt.Errorf("%w: expected features %v, got %v", model.ErrDimensionMismatch, expected, d.FeatureNames)
	}
	for i, name := range d.FeatureNames {
		if !strings.EqualFold(name, expected[i]) {
			return fmt.Errorf("%w: expected features %v, got %v", model.ErrInvalidParameters, expected, d.FeatureNames)
		}
	}
	return nil
}

// BuildPipeline decodes a scaler and a cluster model document into a pipeline
func BuildPipeline(scalerDoc, modelDoc *Document) (*model.Pipeline, error) {
	scaler, err := scalerDoc.Scaler()
	if err != nil {
		return nil, fmt.Errorf("invalid scaler artifact: %w", err)
	}
	clusterModel, err := modelDoc.ClusterModel()
	if err != nil {
		return nil, fmt.Errorf("invalid cluster model artifact: %w", err)
	}
	if scaler.Dimensions() != model.NumFeatures {
		return nil, fmt.Errorf("%w: scaler has %d features, expected %d",
			model.ErrDimensionMismatch, scaler.Dimensions(), model.NumFeatures)
	}
	return model.NewPipeline(scaler, clusterModel)
}
