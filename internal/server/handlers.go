package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/exportdocs/blueprint/internal/logging"
	"github.com/exportdocs/blueprint/pkg/blueprint"
	"github.com/exportdocs/blueprint/pkg/blueprint/bundle"
	"github.com/exportdocs/blueprint/pkg/blueprint/reconcile"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
)

// errorResponse is the JSON error contract of the API. Step names the
// pipeline stage that failed when the error came out of the generator.
type errorResponse struct {
	Error string `json:"error"`
	Step  string `json:"step,omitempty"`
}

// handleScan accepts a workbook upload, runs the scan phase and returns the
// file token plus any headers needing confirmation.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Store.MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err, "")
		return
	}
	defer file.Close()

	if filepath.Ext(header.Filename) != ".xlsx" {
		s.respondError(w, r, http.StatusBadRequest,
			errors.New("only .xlsx workbooks are accepted"), "")
		return
	}

	// The customer code defaults to the file stem, so the upload keeps its
	// original name inside a per-upload directory.
	dir := s.cfg.Store.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	uploadDir := filepath.Join(dir, "blueprint-upload-"+uuid.NewString())
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err, "")
		return
	}
	path := filepath.Join(uploadDir, filepath.Base(header.Filename))
	dest, err := os.Create(path)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err, "")
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		s.respondError(w, r, http.StatusInternalServerError, err, "")
		return
	}
	dest.Close()

	outcome, err := s.generator.Scan(path)
	if err != nil {
		os.RemoveAll(uploadDir)
		s.respondPipelineError(w, r, err)
		return
	}
	s.trackUpload(outcome.FileToken, uploadDir)

	logger.Info("scan complete", "file", header.Filename,
		"status", outcome.Status, "unknown", len(outcome.UnknownHeaders))
	s.respondJSON(w, http.StatusOK, outcome)
}

// generateRequest is the second-phase request body.
type generateRequest struct {
	FileToken    string            `json:"file_token"`
	CustomerCode string            `json:"customer_code"`
	Mappings     map[string]string `json:"mappings"`
}

// handleGenerate finishes a scan session and installs the bundle.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err, "")
		return
	}
	if req.FileToken == "" {
		s.respondError(w, r, http.StatusBadRequest, errors.New("file_token is required"), "")
		return
	}

	result, err := s.generator.Generate(req.FileToken, req.CustomerCode, req.Mappings)
	if err != nil {
		// An expired token means the session is gone for good, so the
		// upload behind it goes too. Other failures keep it for a retry.
		if errors.Is(err, blueprint.ErrTokenExpired) {
			s.releaseUpload(req.FileToken)
		}
		s.respondPipelineError(w, r, err)
		return
	}
	s.releaseUpload(req.FileToken)

	logger.Info("bundle generated", "customer", result.CustomerCode,
		"bundle", result.BundleDir, "fallback", result.Fallback)
	s.respondJSON(w, http.StatusOK, result)
}

// handleOptions lists the column identifier vocabulary for confirmation UIs.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"options": rules.Options()})
}

// handleListBundles lists customers with an installed bundle.
func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	codes, err := s.generator.Store().List()
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err, "")
		return
	}
	if codes == nil {
		codes = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"customers": codes})
}

// handleResolve maps an input file name to its bundle assets.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		s.respondError(w, r, http.StatusBadRequest, errors.New("filename query parameter is required"), "")
		return
	}
	assets, err := s.generator.Store().Resolve(filename)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bundle.ErrBundleNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, status, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, assets)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondPipelineError maps generator errors to status codes, carrying the
// pipeline step name when there is one.
func (s *Server) respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	step := ""
	var stepErr *blueprint.StepError
	if errors.As(err, &stepErr) {
		step = stepErr.Step
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, blueprint.ErrTokenExpired):
		status = http.StatusGone
	case errors.Is(err, blueprint.ErrMappingIncomplete),
		errors.Is(err, reconcile.ErrUnknownColumnID),
		errors.Is(err, reconcile.ErrCustomerCodeRequired):
		status = http.StatusUnprocessableEntity
	}
	s.respondError(w, r, status, err, step)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, err error, step string) {
	logging.FromContext(r.Context()).Error("request failed",
		"path", r.URL.Path, "method", r.Method, "status", status,
		"step", step, "error", err)
	s.respondJSON(w, status, errorResponse{Error: err.Error(), Step: step})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("encode response", "error", err)
	}
}

// requestLogger logs one line per request with the chi request ID attached.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.FromContext(r.Context()).Info("request",
			"method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	})
}
