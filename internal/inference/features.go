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

package inference

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Form field names
const (
	FieldAge      = "age"
	FieldIncome   = "income"
	FieldSpending = "spending"
)

// Features is one customer's raw attributes
type Features struct {
	Age      float64 `json:"age"`
	Income   float64 `json:"income"`
	Spending float64 `json:"spending"`
}

// Vector returns the features in model column order
func (f Features) Vector() []float64 {
	return []float64{f.Age, f.Income, f.Spending}
}

// Validate rejects non-finite values
func (f Features) Validate() error {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{FieldAge, f.Age},
		{FieldIncome, f.Income},
		{FieldSpending, f.Spending},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return &ValidationError{Field: field.name, Reason: "must be a finite number"}
		}
	}
	return nil
}

// LookupFunc returns the raw value of a submitted field and whether it was present
type LookupFunc func(field string) (string, bool)

// ParseFeatures reads the three fields through lookup. Fields are checked in
// form order and the first problem is reported.
func ParseFeatures(lookup LookupFunc) (Features, error) {
	var f Features
	targets := []struct {
		name string
		dst  *float64
	}{
		{FieldAge, &f.Age},
		{FieldIncome, &f.Income},
		{FieldSpending, &f.Spending},
	}

	for _, t := range targets {
		raw, ok := lookup(t.name)
		if !ok {
			return Features{}, &ValidationError{Field: t.name, Reason: "is required"}
		}
		v, err := parseNumber(t.name, raw)
		if err != nil {
			return Features{}, err
		}
		*t.dst = v
	}

	return f, nil
}

func parseNumber(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: field, Reason: "is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, &ValidationError{Field: field, Reason: "is out of range"}
	}
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "must be a number"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: field, Reason: "must be a finite number"}
	}
	return v, nil
}
