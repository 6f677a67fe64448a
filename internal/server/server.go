// Package server exposes the export pipeline over HTTP.
//
// Endpoints:
//
//	POST /render   - render one diagram text, artifact in the response body
//	POST /export   - run a batch export on the server's filesystem
//	GET  /healthz  - liveness plus per-backend probe status
//
// The server shares a Runner with the CLI, so caching, naming, and
// failure semantics are identical across both surfaces.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"diagramport/pkg/backend"
	"diagramport/pkg/errors"
	"diagramport/pkg/export"
)

// maxRequestBody bounds request payloads. Diagram sources are text; a
// megabyte is already generous.
const maxRequestBody = 1 << 20

// Server handles HTTP export requests.
type Server struct {
	runner *export.Runner
	logger *log.Logger
}

// New creates a server around a runner.
func New(runner *export.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, logger: logger}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Post("/render", s.handleRender)
	r.Post("/export", s.handleExport)
	r.Get("/healthz", s.handleHealth)
	return r
}

// renderRequest is the POST /render payload.
type renderRequest struct {
	// Text is the diagram source text.
	Text string `json:"text"`

	// Format, Theme, Width, Height, Background mirror the CLI render
	// options.
	Format     string `json:"format,omitempty"`
	Theme      string `json:"theme,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Background string `json:"background,omitempty"`

	// Backend is the preferred backend name.
	Backend string `json:"backend,omitempty"`
}

// exportRequest is the POST /export payload: a discovery root plus export
// options.
type exportRequest struct {
	Root string `json:"root"`
	export.Options
}

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// contentTypes maps output formats to response content types.
var contentTypes = map[string]string{
	backend.FormatSVG:  "image/svg+xml",
	backend.FormatPNG:  "image/png",
	backend.FormatPDF:  "application/pdf",
	backend.FormatWebp: "image/webp",
	backend.FormatJPG:  "image/jpeg",
	backend.FormatJPEG: "image/jpeg",
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest,
			errors.New(errors.ErrCodeInvalidInput, "text is required"))
		return
	}

	opts := backend.RenderOptions{
		Format:     req.Format,
		Theme:      req.Theme,
		Width:      req.Width,
		Height:     req.Height,
		Background: req.Background,
	}
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	data, backendName, err := s.runner.Selector.Render(r.Context(), req.Text, opts, req.Backend)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.GetCode(err) == errors.ErrCodeStrategyUnavailable {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[opts.Format])
	w.Header().Set("X-Diagramport-Backend", backendName)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Root == "" {
		writeError(w, http.StatusBadRequest,
			errors.New(errors.ErrCodeInvalidInput, "root is required"))
		return
	}

	opts := req.Options
	opts.Logger = s.logger
	result, err := s.runner.ExportBatch(r.Context(), req.Root, opts)
	if err != nil {
		status := http.StatusBadRequest
		if errors.GetCode(err) == errors.ErrCodeStrategyUnavailable {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// healthResponse reports liveness and which backends currently probe.
type healthResponse struct {
	Status   string          `json:"status"`
	Backends map[string]bool `json:"backends"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backends: make(map[string]bool)}
	for _, b := range s.runner.Selector.Backends() {
		resp.Backends[b.Name()] = b.Probe(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: errors.UserMessage(err)}
	if code := errors.GetCode(err); code != "" {
		resp.Code = string(code)
	}
	writeJSON(w, status, resp)
}
