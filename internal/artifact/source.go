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

package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/your-org/customer-segmenter/internal/model"
	"github.com/your-org/customer-segmenter/internal/resilience"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source loads the scaler and cluster model and binds them into a pipeline
type Source interface {
	Load(ctx context.Context) (*model.Pipeline, error)
	Describe() string
}

// FileSource reads both artifacts from a directory
type FileSource struct {
	Dir        string
	ScalerFile string
	ModelFile  string
	Logger     *zap.Logger
}

// Load implements Source
func (s *FileSource) Load(ctx context.Context) (*model.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scalerDoc, modelDoc *Document
	var g errgroup.Group
	g.Go(func() error {
		doc, err := ReadDocument(filepath.Join(s.Dir, s.ScalerFile))
		if err != nil {
			return fmt.Errorf("failed to load scaler: %w", err)
		}
		scalerDoc = doc
		return nil
	})
	g.Go(func() error {
		doc, err := ReadDocument(filepath.Join(s.Dir, s.ModelFile))
		if err != nil {
			return fmt.Errorf("failed to load cluster model: %w", err)
		}
		modelDoc = doc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pipeline, err := BuildPipeline(scalerDoc, modelDoc)
	if err != nil {
		return nil, err
	}

	logger(s.Logger).Info("Artifacts loaded from files",
		zap.String("dir", s.Dir),
		zap.String("scaler", string(scalerDoc.Kind)),
		zap.Int("clusters", pipeline.NumClusters()))

	return pipeline, nil
}

// Describe implements Source
func (s *FileSource) Describe() string {
	return fmt.Sprintf("files %s, %s", filepath.Join(s.Dir, s.ScalerFile), filepath.Join(s.Dir, s.ModelFile))
}

// RegistrySource reads both artifacts from a SQLite registry. Reads that hit a
// busy or locked database are retried according to Retry.
type RegistrySource struct {
	Registry   *Registry
	ScalerName string
	ModelName  string
	Retry      resilience.Policy
	Logger     *zap.Logger
}

// Load implements Source
func (s *RegistrySource) Load(ctx context.Context) (*model.Pipeline, error) {
	policy := s.Retry
	policy.Retryable = IsTransient

	var scalerRec, modelRec *Record
	err := resilience.Do(ctx, s.Logger, policy, "registry read", func(ctx context.Context) error {
		var err error
		if scalerRec, err = s.Registry.Get(ctx, s.ScalerName); err != nil {
			return fmt.Errorf("failed to load scaler: %w", err)
		}
		if modelRec, err = s.Registry.Get(ctx, s.ModelName); err != nil {
			return fmt.Errorf("failed to load cluster model: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scalerDoc, err := scalerRec.Document()
	if err != nil {
		return nil, fmt.Errorf("failed to load scaler: %w", err)
	}
	modelDoc, err := modelRec.Document()
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster model: %w", err)
	}

	pipeline, err := BuildPipeline(scalerDoc, modelDoc)
	if err != nil {
		return nil, err
	}

	logger(s.Logger).Info("Artifacts loaded from registry",
		zap.String("scaler_name", s.ScalerName),
		zap.String("model_name", s.ModelName),
		zap.Int("clusters", pipeline.NumClusters()))

	return pipeline, nil
}

// Describe implements Source
func (s *RegistrySource) Describe() string {
	return fmt.Sprintf("registry entries %s, %s", s.ScalerName, s.ModelName)
}

// ReadDocument reads and decodes an artifact file
func ReadDocument(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact file: %w", err)
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ImportFiles validates a scaler and a cluster model file and stores both in the registry
func ImportFiles(ctx context.Context, registry *Registry, scalerPath, modelPath, scalerName, modelName string) error {
	scalerDoc, err := ReadDocument(scalerPath)
	if err != nil {
		return fmt.Errorf("failed to read scaler: %w", err)
	}
	modelDoc, err := ReadDocument(modelPath)
	if err != nil {
		return fmt.Errorf("failed to read cluster model: %w", err)
	}

	// Both must bind into a working pipeline before anything is written
	if _, err := BuildPipeline(scalerDoc, modelDoc); err != nil {
		return err
	}

	records := make([]Record, 0, 2)
	for _, item := range []struct {
		name string
		path string
		doc  *Document
	}{
		{name: scalerName, path: scalerPath, doc: scalerDoc},
		{name: modelName, path: modelPath, doc: modelDoc},
	} {
		format, _ := FormatFromPath(item.path)
		payload, err := os.ReadFile(item.path) // #nosec G304 -- path comes from the operator
		if err != nil {
			return fmt.Errorf("failed to read artifact file: %w", err)
		}
		records = append(records, Record{
			Name:    item.name,
			Kind:    item.doc.Kind,
			Format:  format,
			Payload: payload,
		})
	}

	return registry.PutAll(ctx, records...)
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
