package web

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/infra/metrics"
	red "document-ai-pipeline/internal/infra/redis"
)

const maxUploadBytes = 128 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUploadDocument accepts a multipart upload: the file under "file",
// plus projectId and optional name/mediaType form fields.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	projectID := r.FormValue("projectId")
	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	mediaType := r.FormValue("mediaType")
	if mediaType == "" {
		mediaType = strings.TrimPrefix(filepath.Ext(name), ".")
	}

	doc, err := s.docUC.Register(r.Context(), projectID, name, mediaType, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse(doc))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse(doc))
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.docUC.StartProcessing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.queue.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRequeueJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.queue.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type searchRequest struct {
	Query      string `json:"query"`
	ProjectID  string `json:"projectId,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	TopK       int    `json:"topK,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), red.SearchCallerKey(callerKey(r)), s.search.RateLimit, s.search.RateWindow)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, letting request through")
		} else if !ok {
			metrics.IncSearchRequest("rate_limited")
			s.writeError(w, domain.ErrRateLimited)
			return
		}
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	results, err := s.searchUC.Search(r.Context(), req.Query, repository.SearchFilters{
		ProjectID:  req.ProjectID,
		DocumentID: req.DocumentID,
	}, req.TopK)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []*model.RankedResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// callerKey identifies the rate-limit bucket: the API key grants one shared
// bucket per credential, falling back to the client address.
func callerKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type documentView struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func documentResponse(doc *model.Document) documentView {
	return documentView{
		ID:        doc.ID,
		ProjectID: doc.ProjectID,
		Name:      doc.Name,
		MediaType: doc.MediaType,
		Status:    string(doc.Status),
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrProcessingActive), errors.Is(err, domain.ErrJobNotRequeueable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
