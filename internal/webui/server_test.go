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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/customer-segmenter/internal/config"
	"github.com/your-org/customer-segmenter/internal/health"
	"github.com/your-org/customer-segmenter/internal/inference"
	"github.com/your-org/customer-segmenter/internal/model"
	"go.uber.org/zap"
)

var clusterPattern = regexp.MustCompile(`The customer belongs to Cluster (\d+)`)

// failingModel always fails to predict
type failingModel struct{}

func (failingModel) Predict([]float64) (int, error) { return 0, errors.New("centroid table corrupted") }
func (failingModel) NumClusters() int { return 3 }
func (failingModel) Dimensions() int { return model.NumFeatures }

func newPipeline(t *testing.T, clusterModel model.ClusterModel) *model.Pipeline {
	t.Helper()
	scaler, err := model.NewStandardScaler([]float64{40, 60000, 50}, []float64{10, 20000, 25})
	require.NoError(t, err)
	if clusterModel == nil {
		km, err := model.NewKMeans([][]float64{{-1, -1, 1}, {1, 1, -1}, {0, 0, 0}})
		require.NoError(t, err)
		clusterModel = km
	}
	pipeline, err := model.NewPipeline(scaler, clusterModel)
	require.NoError(t, err)
	return pipeline
}

func setupTestServer(t *testing.T, clusterModel model.ClusterModel) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	pipeline := newPipeline(t, clusterModel)
	svc, err := inference.NewService(pipeline, inference.Options{CacheSize: 8}, logger)
	require.NoError(t, err)

	healthManager := health.NewManager("segmenter-test", "1.0.0", logger)
	healthManager.AddChecker("model", health.ModelChecker("test", svc.NumClusters))

	server, err := NewServer(svc, healthManager, logger)
	require.NoError(t, err)
	return server
}

func postForm(server *Server, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleIndex(t *testing.T) {
	server := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="age"`)
	assert.Contains(t, body, `name="income"`)
	assert.Contains(t, body, `name="spending"`)
	assert.NotContains(t, body, "The customer belongs to Cluster")
	assert.NotContains(t, body, "Error:")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestHandleSubmit_Success(t *testing.T) {
	server := setupTestServer(t, nil)

	w := postForm(server, "/", url.Values{"age": {"35"}, "income": {"50000"}, "spending": {"60"}})

	assert.Equal(t, http.StatusOK, w.Code)
	match := clusterPattern.FindStringSubmatch(w.Body.String())
	require.NotNil(t, match, "expected a cluster label in the page")
	assert.Contains(t, []string{"0", "1", "2"}, match[1])
	assert.NotContains(t, w.Body.String(), "Error:")
	assert.Contains(t, w.Body.String(), `value="50000"`)
}

func TestHandleSubmit_Errors(t *testing.T) {
	server := setupTestServer(t, nil)

	tests := []struct {
		name         string
		values       url.Values
		expectStatus int
		expectText   string
	}{
		{
			name:         "non numeric age",
			values:       url.Values{"age": {"abc"}, "income": {"50000"}, "spending": {"60"}},
			expectStatus: http.StatusBadRequest,
			expectText:   "Error: age must be a number",
		},
		{
			name:         "missing spending",
			values:       url.Values{"age": {"35"}, "income": {"50000"}},
			expectStatus: http.StatusBadRequest,
			expectText:   "Error: spending is required",
		},
		{
			name:         "nan income",
			values:       url.Values{"age": {"35"}, "income": {"nan"}, "spending": {"60"}},
			expectStatus: http.StatusBadRequest,
			expectText:   "Error: income must be a finite number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(server, "/", tt.values)
			assert.Equal(t, tt.expectStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectText)
			assert.NotRegexp(t, clusterPattern, w.Body.String())
		})
	}
}

func TestHandleSubmit_InferenceFailureHidesCause(t *testing.T) {
	server := setupTestServer(t, failingModel{})

	w := postForm(server, "/", url.Values{"age": {"35"}, "income": {"50000"}, "spending": {"60"}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Error: unable to classify customer")
	assert.NotContains(t, w.Body.String(), "corrupted")
}

func TestHandleSubmit_HugeValuesAreNotClassified(t *testing.T) {
	server := setupTestServer(t, nil)

	for _, age := range []string{"1e200", "-1e200"} {
		t.Run(age, func(t *testing.T) {
			w := postForm(server, "/", url.Values{"age": {age}, "income": {"50000"}, "spending": {"60"}})
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), "Error: unable to classify customer")
			assert.NotRegexp(t, clusterPattern, w.Body.String())
		})
	}
}

func TestHandleSubmit_Idempotent(t *testing.T) {
	server := setupTestServer(t, nil)
	values := url.Values{"age": {"22"}, "income": {"18000"}, "spending": {"81"}}

	first := clusterPattern.FindStringSubmatch(postForm(server, "/", values).Body.String())
	second := clusterPattern.FindStringSubmatch(postForm(server, "/", values).Body.String())
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first[1], second[1])
}

func TestHandlePredict_JSON(t *testing.T) {
	server := setupTestServer(t, nil)

	tests := []struct {
		name         string
		body         string
		expectStatus int
		expectCode   inference.ErrorCode
		expectField  string
	}{
		{name: "valid", body: `{"age":35,"income":50000,"spending":60}`, expectStatus: http.StatusOK},
		{name: "zero is a value", body: `{"age":0,"income":0,"spending":0}`, expectStatus: http.StatusOK},
		{
			name:         "missing field",
			body:         `{"age":35,"income":50000}`,
			expectStatus: http.StatusBadRequest,
			expectCode:   inference.ErrorCodeValidation,
			expectField:  "spending",
		},
		{
			name:         "string value",
			body:         `{"age":"abc","income":50000,"spending":60}`,
			expectStatus: http.StatusBadRequest,
			expectCode:   inference.ErrorCodeValidation,
			expectField:  "age",
		},
		{
			name:         "malformed",
			body:         `{"age":`,
			expectStatus: http.StatusBadRequest,
			expectCode:   inference.ErrorCodeValidation,
			expectField:  "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(RequestIDHeader, "test-request")
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectStatus, w.Code)
			assert.Equal(t, "test-request", w.Header().Get(RequestIDHeader))

			if tt.expectStatus == http.StatusOK {
				var resp PredictResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.GreaterOrEqual(t, resp.Cluster, 0)
				assert.Less(t, resp.Cluster, 3)
				assert.Equal(t, inference.ResultMessage(resp.Cluster), resp.Message)
				return
			}

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectCode, resp.Code)
			assert.Equal(t, tt.expectField, resp.Field)
			assert.Equal(t, "test-request", resp.RequestID)
		})
	}
}

func TestHandlePredict_FormEncoded(t *testing.T) {
	server := setupTestServer(t, nil)

	w := postForm(server, "/api/v1/predict", url.Values{"age": {"35"}, "income": {"50000"}, "spending": {"60"}})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, clusterPattern, resp.Message)
}

func TestHandlePredict_InferenceFailure(t *testing.T) {
	server := setupTestServer(t, failingModel{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{"age":35,"income":50000,"spending":60}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, inference.ErrorCodeInference, resp.Code)
	assert.Equal(t, "unable to classify customer", resp.Error)
	assert.NotEmpty(t, resp.RequestID)
}

func TestHealthRoute(t *testing.T) {
	server := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(health.StatusHealthy), response["status"])

	req = httptest.NewRequest(http.MethodHead, "/health", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRecoveryKeepsServing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(zap.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDPropagatesToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())

	var seen string
	router.GET("/", func(c *gin.Context) {
		seen = inference.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	server := setupTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := server.Run(ctx, serverConfigForTest())
	assert.NoError(t, err)
}

func serverConfigForTest() config.ServerConfig {
	return config.ServerConfig{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
}
