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

// Package webui serves the customer segmentation form and its JSON API.
package webui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/customer-segmenter/internal/config"
	"github.com/your-org/customer-segmenter/internal/health"
	"github.com/your-org/customer-segmenter/internal/inference"
	"go.uber.org/zap"
)

const (
	// PageTitle is shown in the browser tab and page heading
	PageTitle = "Customer Segmentation"

	indexTemplate = "index.html"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server wires the inference service into a gin router
type Server struct {
	service *inference.Service
	health  *health.Manager
	logger  *zap.Logger
	engine  *gin.Engine
}

// NewServer creates the router. The service and its pipeline are shared by all requests.
func NewServer(service *inference.Service, healthManager *health.Manager, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("inference service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if healthManager == nil {
		healthManager = health.NewManager("segmenter", "dev", logger)
	}

	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		service: service,
		health:  healthManager,
		logger:  logger,
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger(logger))
	router.Use(Recovery(logger))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.handleIndex)
	router.POST("/", s.handleSubmit)
	healthHandler := gin.WrapH(healthManager.HTTPHandler())
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	api := router.Group("/api/v1")
	api.POST("/predict", s.handlePredict)

	s.engine = router
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
