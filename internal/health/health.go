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

// Package health reports whether the segmentation service can answer requests
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the outcome of one check or of the whole report
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"

	// DefaultTimeout bounds a full round of checks
	DefaultTimeout = 5 * time.Second
)

// worse returns the more severe of two statuses
func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// CheckResult is what a single checker reports
type CheckResult struct {
	Status   Status                 `json:"status"`
	Error    string                 `json:"error,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Duration string                 `json:"duration"`
}

// Report is the body served on /health
type Report struct {
	Status    Status                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	GoVersion string                 `json:"go_version"`
	Checks    map[string]CheckResult `json:"checks"`
	CheckedAt time.Time              `json:"checked_at"`
}

// Checker inspects one part of the service
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements Checker
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager runs the registered checkers and aggregates their results
type Manager struct {
	service string
	version string
	started time.Time
	logger  *zap.Logger

	mu       sync.RWMutex
	timeout  time.Duration
	checkers map[string]Checker
}

// NewManager creates a manager with no checkers. An empty manager reports healthy.
func NewManager(service, version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		service:  service,
		version:  version,
		started:  time.Now(),
		logger:   logger,
		timeout:  DefaultTimeout,
		checkers: make(map[string]Checker),
	}
}

// SetTimeout changes how long a round of checks may take
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
}

// AddChecker registers checker under name, replacing any previous one
func (m *Manager) AddChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// Check runs every checker concurrently and returns the aggregated report
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	timeout := m.timeout
	checkers := make(map[string]Checker, len(m.checkers))
	for name, checker := range m.checkers {
		checkers[name] = checker
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			start := time.Now()
			result := checker.Check(ctx)
			result.Duration = time.Since(start).String()

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	status := StatusHealthy
	for _, name := range names {
		result := results[name]
		if result.Status != StatusHealthy {
			m.logger.Warn("Health check failing",
				zap.String("check", name),
				zap.String("status", string(result.Status)),
				zap.String("error", result.Error))
		}
		status = worse(status, result.Status)
	}

	return Report{
		Status:    status,
		Service:   m.service,
		Version:   m.version,
		Uptime:    time.Since(m.started).Round(time.Second).String(),
		GoVersion: runtime.Version(),
		Checks:    results,
		CheckedAt: time.Now().UTC(),
	}
}

// HTTPHandler serves the report as JSON. Unhealthy reports get a 503.
func (m *Manager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		report := m.Check(r.Context())

		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			m.logger.Error("Failed to write health report", zap.Error(err))
		}
	}
}

// ModelChecker reports the loaded pipeline. A model with no clusters is unhealthy.
func ModelChecker(source string, numClusters func() int) Checker {
	return CheckerFunc(func(context.Context) CheckResult {
		k := numClusters()
		if k < 1 {
			return CheckResult{Status: StatusUnhealthy, Error: "cluster model has no clusters"}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Details: map[string]interface{}{"source": source, "clusters": k},
		}
	})
}

// DatabaseChecker pings a database. A failing ping only degrades the service
// because the pipeline is already in memory.
func DatabaseChecker(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{
				Status:  StatusDegraded,
				Error:   fmt.Sprintf("ping failed: %v", err),
				Details: map[string]interface{}{"database": name},
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Details: map[string]interface{}{"database": name},
		}
	})
}
