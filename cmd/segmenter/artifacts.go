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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/your-org/customer-segmenter/internal/artifact"
	"go.uber.org/zap"
)

func newArtifactsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Manage the SQLite artifact registry",
		Long: `Manage the SQLite artifact registry used when artifacts.source is "sqlite".

Available subcommands:
  import - Validate a scaler and a cluster model file and store both
  list   - Show the stored artifacts
  show   - Print one stored artifact as JSON or YAML`,
	}

	var dbPath string
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Registry database path (defaults to artifacts.db_path)")

	cmd.AddCommand(
		newArtifactsImportCmd(configPath, &dbPath),
		newArtifactsListCmd(configPath, &dbPath),
		newArtifactsShowCmd(configPath, &dbPath),
	)
	return cmd
}

func newArtifactsImportCmd(configPath, dbPath *string) *cobra.Command {
	var scalerPath, modelPath, scalerName, modelName string

	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Import a scaler and a cluster model into the registry",
		Example: `  segmenter artifacts import --scaler models/scaler.json --model models/kmeans_model.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			defer syncLogger(rt.logger)

			if scalerName == "" {
				scalerName = rt.cfg.Artifacts.ScalerName
			}
			if modelName == "" {
				modelName = rt.cfg.Artifacts.ModelName
			}

			registry, err := artifact.OpenRegistry(registryPath(*dbPath, rt.cfg.Artifacts.DBPath), rt.logger)
			if err != nil {
				return err
			}
			defer closeRegistry(registry, rt.logger)

			if err := artifact.ImportFiles(cmd.Context(), registry, scalerPath, modelPath, scalerName, modelName); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			rt.logger.Info("Artifacts imported",
				zap.String("scaler_name", scalerName),
				zap.String("model_name", modelName))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s and %s\n", scalerName, modelName)
			return nil
		},
	}

	cmd.Flags().StringVar(&scalerPath, "scaler", "", "Scaler artifact file (.json, .yaml)")
	cmd.Flags().StringVar(&modelPath, "model", "", "Cluster model artifact file (.json, .yaml)")
	cmd.Flags().StringVar(&scalerName, "scaler-name", "", "Registry name for the scaler (defaults to artifacts.scaler_name)")
	cmd.Flags().StringVar(&modelName, "model-name", "", "Registry name for the model (defaults to artifacts.model_name)")
	_ = cmd.MarkFlagRequired("scaler")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func newArtifactsListCmd(configPath, dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the artifacts stored in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			defer syncLogger(rt.logger)

			registry, err := artifact.OpenRegistry(registryPath(*dbPath, rt.cfg.Artifacts.DBPath), rt.logger)
			if err != nil {
				return err
			}
			defer closeRegistry(registry, rt.logger)

			records, err := registry.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tFORMAT\tCREATED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Name, rec.Kind, rec.Format, rec.CreatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newArtifactsShowCmd(configPath, dbPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "show NAME",
		Short:   "Print a stored artifact",
		Example: `  segmenter artifacts show kmeans_model --output json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := artifact.ParseFormat(output)
			if err != nil {
				return err
			}

			rt, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			defer syncLogger(rt.logger)

			registry, err := artifact.OpenRegistry(registryPath(*dbPath, rt.cfg.Artifacts.DBPath), rt.logger)
			if err != nil {
				return err
			}
			defer closeRegistry(registry, rt.logger)

			rec, err := registry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := rec.Document()
			if err != nil {
				return err
			}
			data, err := artifact.Encode(doc, format)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := out.Write(data); err != nil {
				return err
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				_, err = fmt.Fprintln(out)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(artifact.FormatYAML), "Output format (json, yaml)")
	return cmd
}

func registryPath(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	return configured
}
