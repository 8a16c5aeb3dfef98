package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zeebo/blake3"

	"github.com/incipitworks/incipit/core/convert"
	"github.com/incipitworks/incipit/core/errors"
	"github.com/incipitworks/incipit/internal/logging"
	"github.com/incipitworks/incipit/internal/validation"
)

// docxMIME is the content type of a Word document package.
const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// APIResponse is the standard JSON response wrapper for non-binary endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

var startTime = time.Now()

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "incipit",
		"health":  "/health",
		"process": "POST /process",
		"links":   "POST /links",
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET")
		return
	}
	respondJSON(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: s.cfg.Version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
	})
}

// handleProcess converts an uploaded document's endnotes to incipit notes and
// activates links in the result.
func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	wordCount := 0
	if raw := r.FormValue("word_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_OPTION", "word_count must be an integer")
			return
		}
		wordCount = n
	}
	style := r.FormValue("format_style")
	if err := validation.ValidateStyle(style); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_OPTION", err.Error())
		return
	}

	opts := convert.Options{
		WordCount: validation.ClampWordCount(wordCount,
			convert.MinWordCount, convert.MaxWordCount, convert.DefaultWordCount),
		Style: style,
	}

	start := time.Now()
	transformed, err := convert.Transform(content, opts)
	if err != nil {
		respondConversionError(w, r, err)
		return
	}
	final, err := convert.ActivateLinks(transformed)
	if err != nil {
		respondConversionError(w, r, err)
		return
	}

	logging.Conversion(r.Context(), "process", len(content), len(final), time.Since(start),
		"word_count", opts.WordCount, "style", opts.Style)
	s.respondDocument(w, r, name, final)
}

// handleLinks activates links in an uploaded document without converting
// endnotes.
func (s *server) handleLinks(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	start := time.Now()
	final, err := convert.ActivateLinks(content)
	if err != nil {
		respondConversionError(w, r, err)
		return
	}

	logging.Conversion(r.Context(), "links", len(content), len(final), time.Since(start))
	s.respondDocument(w, r, name, final)
}

// readUpload parses the multipart form and returns the uploaded document.
// On failure it writes the error response and returns ok=false.
func (s *server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use POST")
		return "", nil, false
	}

	maxBytes := s.cfg.MaxUploadBytes
	if maxBytes == 0 {
		maxBytes = validation.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Could not parse upload")
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_UPLOAD", "No file uploaded")
		return "", nil, false
	}
	defer file.Close()

	if err := validation.ValidateUploadName(header.Filename); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return "", nil, false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Could not read upload")
		return "", nil, false
	}
	return header.Filename, content, true
}

// respondDocument streams the converted package back with an integrity digest
// header.
func (s *server) respondDocument(w http.ResponseWriter, r *http.Request, uploadName string, content []byte) {
	digest := blake3.Sum256(content)
	outName := validation.SanitizeBaseName(uploadName) + "_incipit.docx"

	w.Header().Set("Content-Type", docxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outName))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("X-Content-Digest", "blake3:"+hex.EncodeToString(digest[:]))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		logging.ErrorContext(r.Context(), "response write failed", "error", err.Error())
	}
}

// respondConversionError maps core error kinds to HTTP responses: structural
// input problems are client errors, everything else is internal.
func respondConversionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrMissingPart):
		respondError(w, http.StatusUnprocessableEntity, "MISSING_PART", err.Error())
	case errors.Is(err, errors.ErrMissingEndnotes):
		respondError(w, http.StatusUnprocessableEntity, "MISSING_ENDNOTES", err.Error())
	case errors.Is(err, errors.ErrMalformedPackage):
		respondError(w, http.StatusUnprocessableEntity, "MALFORMED_PACKAGE", err.Error())
	default:
		logging.ErrorContext(r.Context(), "conversion failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Conversion failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}
