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

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func staticChecker(status Status) Checker {
	return CheckerFunc(func(context.Context) CheckResult {
		return CheckResult{Status: status}
	})
}

func TestManager_Check(t *testing.T) {
	tests := []struct {
		name     string
		checkers map[string]Status
		expected Status
	}{
		{name: "no checkers", checkers: nil, expected: StatusHealthy},
		{name: "all healthy", checkers: map[string]Status{"model": StatusHealthy, "registry": StatusHealthy}, expected: StatusHealthy},
		{name: "degraded wins over healthy", checkers: map[string]Status{"model": StatusHealthy, "registry": StatusDegraded}, expected: StatusDegraded},
		{name: "unhealthy wins", checkers: map[string]Status{"model": StatusUnhealthy, "registry": StatusDegraded}, expected: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager("segmenter", "1.0.0", zaptest.NewLogger(t))
			for name, status := range tt.checkers {
				manager.AddChecker(name, staticChecker(status))
			}

			report := manager.Check(context.Background())
			assert.Equal(t, tt.expected, report.Status)
			assert.Equal(t, "segmenter", report.Service)
			assert.Len(t, report.Checks, len(tt.checkers))
			for name := range tt.checkers {
				assert.NotEmpty(t, report.Checks[name].Duration)
			}
		})
	}
}

func TestManager_CheckHonoursTimeout(t *testing.T) {
	manager := NewManager("segmenter", "1.0.0", nil)
	manager.SetTimeout(20 * time.Millisecond)
	manager.AddChecker("slow", CheckerFunc(func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}))

	report := manager.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks["slow"].Error)
}

func TestHTTPHandler(t *testing.T) {
	manager := NewManager("segmenter", "1.0.0", zaptest.NewLogger(t))
	manager.AddChecker("model", ModelChecker("files", func() int { return 5 }))

	w := httptest.NewRecorder()
	manager.HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, float64(5), report.Checks["model"].Details["clusters"])

	w = httptest.NewRecorder()
	manager.HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	manager.HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHTTPHandler_Unhealthy(t *testing.T) {
	manager := NewManager("segmenter", "1.0.0", zaptest.NewLogger(t))
	manager.AddChecker("model", ModelChecker("files", func() int { return 0 }))

	w := httptest.NewRecorder()
	manager.HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDatabaseChecker(t *testing.T) {
	healthy := DatabaseChecker("artifacts.db", func(context.Context) error { return nil }).Check(context.Background())
	assert.Equal(t, StatusHealthy, healthy.Status)
	assert.Equal(t, "artifacts.db", healthy.Details["database"])

	locked := DatabaseChecker("artifacts.db", func(context.Context) error {
		return errors.New("database is locked")
	}).Check(context.Background())
	assert.Equal(t, StatusDegraded, locked.Status)
	assert.Contains(t, locked.Error, "database is locked")
}
