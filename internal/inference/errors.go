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
	"fmt"
	"net/http"
)

// ErrorCode identifies which side of the request failed
type ErrorCode string

const (
	// ErrorCodeValidation marks input that could not be turned into features
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodeInference marks a failure inside the scaler or the cluster model
	ErrorCodeInference ErrorCode = "INFERENCE_ERROR"
)

// Stage names the pipeline step that failed
type Stage string

const (
	StageTransform Stage = "transform"
	StagePredict   Stage = "predict"
)

// ValidationError reports a missing or malformed input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// InferenceError reports a failure while scaling or classifying valid input.
// The wrapped cause is for logs only.
type InferenceError struct {
	Stage Stage
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Code returns the error code for err
func Code(err error) ErrorCode {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ErrorCodeValidation
	}
	return ErrorCodeInference
}

// StatusCode maps err to the HTTP status the endpoint responds with
func StatusCode(err error) int {
	if Code(err) == ErrorCodeValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Message returns the text shown to the user after the "Error: " prefix.
// Validation errors name the offending field; everything else is generic.
func Message(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return "unable to classify customer"
}

// ErrorMessage returns the full user-facing error line
func ErrorMessage(err error) string {
	return "Error: " + Message(err)
}
