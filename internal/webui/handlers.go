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

package webui

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/your-org/customer-segmenter/internal/inference"
	"go.uber.org/zap"
)

// PredictRequest is the JSON body accepted by the API. Pointers distinguish a
// missing field from an explicit zero.
type PredictRequest struct {
	Age      *float64 `json:"age"`
	Income   *float64 `json:"income"`
	Spending *float64 `json:"spending"`
}

// PredictResponse is returned on success
type PredictResponse struct {
	Cluster int    `json:"cluster"`
	Message string `json:"message"`
}

// ErrorResponse is returned on failure
type ErrorResponse struct {
	Error     string              `json:"error"`
	Code      inference.ErrorCode `json:"code"`
	Field     string              `json:"field,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// handleIndex renders the empty form
func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, indexTemplate, gin.H{
		"title": PageTitle,
	})
}

// handleSubmit classifies a form submission and renders the result or error
func (s *Server) handleSubmit(c *gin.Context) {
	data := gin.H{
		"title":    PageTitle,
		"age":      c.PostForm(inference.FieldAge),
		"income":   c.PostForm(inference.FieldIncome),
		"spending": c.PostForm(inference.FieldSpending),
	}

	result, err := s.service.ClassifyForm(c.Request.Context(), c.GetPostForm)
	if err != nil {
		s.logRejected(c, err)
		data["prediction"] = inference.ErrorMessage(err)
		data["isError"] = true
		c.HTML(inference.StatusCode(err), indexTemplate, data)
		return
	}

	data["prediction"] = result.Message
	c.HTML(http.StatusOK, indexTemplate, data)
}

// handlePredict is the JSON counterpart of handleSubmit. Form-encoded bodies are accepted too.
func (s *Server) handlePredict(c *gin.Context) {
	ctx := c.Request.Context()

	var result *inference.Result
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var features inference.Features
		features, err = decodePredictRequest(c)
		if err == nil {
			result, err = s.service.Classify(ctx, features)
		}
	} else {
		result, err = s.service.ClassifyForm(ctx, c.GetPostForm)
	}

	if err != nil {
		s.logRejected(c, err)
		resp := ErrorResponse{
			Error:     inference.Message(err),
			Code:      inference.Code(err),
			RequestID: c.GetString(RequestIDKey),
		}
		var validationErr *inference.ValidationError
		if errors.As(err, &validationErr) {
			resp.Field = validationErr.Field
		}
		c.JSON(inference.StatusCode(err), resp)
		return
	}

	c.JSON(http.StatusOK, PredictResponse{
		Cluster: result.Cluster,
		Message: result.Message,
	})
}

// decodePredictRequest binds the JSON body, reporting problems as validation errors
func decodePredictRequest(c *gin.Context) (inference.Features, error) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return inference.Features{}, &inference.ValidationError{Field: typeErr.Field, Reason: "must be a number"}
		}
		return inference.Features{}, &inference.ValidationError{Field: "body", Reason: "must be a valid JSON object"}
	}

	for _, field := range []struct {
		name  string
		value *float64
	}{
		{inference.FieldAge, req.Age},
		{inference.FieldIncome, req.Income},
		{inference.FieldSpending, req.Spending},
	} {
		if field.value == nil {
			return inference.Features{}, &inference.ValidationError{Field: field.name, Reason: "is required"}
		}
	}

	return inference.Features{Age: *req.Age, Income: *req.Income, Spending: *req.Spending}, nil
}

// logRejected logs validation problems at debug and inference failures at warn
func (s *Server) logRejected(c *gin.Context, err error) {
	fields := []zap.Field{
		zap.String("request_id", c.GetString(RequestIDKey)),
		zap.String("code", string(inference.Code(err))),
		zap.Error(err),
	}
	if inference.Code(err) == inference.ErrorCodeValidation {
		s.logger.Debug("Rejected invalid input", fields...)
		return
	}
	s.logger.Warn("Classification failed", fields...)
}
