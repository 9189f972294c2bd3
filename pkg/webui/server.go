// Package webui serves the prediction form and the operational endpoints.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mlengine/pkg/logx"
	"mlengine/pkg/predict"
	"mlengine/pkg/version"
)

//go:embed web/templates/*.html
var templateFS embed.FS

// Predictor produces one math score per request.
type Predictor interface {
	Predict(predict.StudentFeatures) (float64, error)
	ModelName() string
}

// Server represents the web UI HTTP server.
type Server struct {
	predictor Predictor
	gatherer  prometheus.Gatherer
	logger    *logx.Logger
	templates *template.Template
}

// NewServer creates a new web UI server. A nil gatherer serves the default registry.
func NewServer(predictor Predictor, gatherer prometheus.Gatherer) *Server {
	templates, err := template.ParseFS(templateFS, "web/templates/*.html")
	if err != nil {
		// Templates are embedded at compile time.
		panic(fmt.Sprintf("Failed to parse embedded templates: %v", err))
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		predictor: predictor,
		gatherer:  gatherer,
		logger:    logx.NewLogger("webui"),
		templates: templates,
	}
}

// RegisterRoutes sets up HTTP routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web UI server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down web UI server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web UI: %w", err)
	}
	return nil
}

type page struct {
	Title   string
	Version string
	Model   string
}

func (s *Server) page(title string) page {
	p := page{Title: title, Version: version.String()}
	if s.predictor != nil {
		p.Model = s.predictor.ModelName()
	}
	return p
}

// handleIndex implements GET /.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.render(w, http.StatusOK, "index.html", s.page("Student Performance"))
}

// handleHealth implements GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]string{
		"status":  "ok",
		"version": version.Version,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health response: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render %s: %v", name, err)
	}
}
