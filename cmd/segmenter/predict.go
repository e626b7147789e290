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

	"github.com/spf13/cobra"
	"github.com/your-org/customer-segmenter/internal/inference"
)

// newPredictCmd classifies one customer from flags, printing the same line the form shows
func newPredictCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify a single customer",
		Example: `  segmenter predict --age 35 --income 50000 --spending 60
  segmenter predict --config configs/config.yaml --age 22 --income 18000 --spending 81`,
		Args: cobra.NoArgs,
	}
	flags := cmd.Flags()
	flags.String(inference.FieldAge, "", "Customer age")
	flags.String(inference.FieldIncome, "", "Annual income")
	flags.String(inference.FieldSpending, "", "Spending score")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		rt, err := setup(*configPath, true)
		if err != nil {
			return err
		}
		defer syncLogger(rt.logger)

		source, registry, err := openSource(rt.cfg, rt.logger)
		if err != nil {
			return err
		}
		defer closeRegistry(registry, rt.logger)

		pipeline, err := source.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load artifacts: %w", err)
		}

		svc, err := inference.NewService(pipeline, inference.Options{}, rt.logger)
		if err != nil {
			return err
		}

		// Unset flags are reported as missing fields
		lookup := func(field string) (string, bool) {
			if !cmd.Flags().Changed(field) {
				return "", false
			}
			value, err := cmd.Flags().GetString(field)
			return value, err == nil
		}

		result, err := svc.ClassifyForm(cmd.Context(), lookup)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), inference.ErrorMessage(err))
			cmd.SilenceErrors = true
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	}

	return cmd
}
