package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/query"
	"github.com/poiesic/ragd/storage"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	doc, err := s.intake.Ingest(r.Context(), req.Content, req.MetaInfo)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	// Created but not yet embedded: the embedding materializes asynchronously.
	s.respondJSON(w, http.StatusCreated, toDocumentResponse(doc, false))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid skip parameter")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		s.respondError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}

	docs, err := s.repository.ListDocuments(r.Context(), skip, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	responses := make([]documentResponse, len(docs))
	for i, doc := range docs {
		responses[i] = toDocumentResponse(doc, s.isEmbedded(r, doc.Id))
	}
	s.respondJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := s.repository.GetDocument(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toDocumentResponse(doc, s.isEmbedded(r, doc.Id)))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := s.repository.DeleteDocument(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = core.DefaultTopK
	}

	resp, err := s.orchestrator.Answer(r.Context(), &core.QueryRequest{
		Query: req.Query,
		TopK:  topK,
		Model: req.Model,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toQueryResponse(resp))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docCount, err := s.repository.CountDocuments(ctx)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	embCount, err := s.repository.CountEmbeddings(ctx)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	stats, err := s.tasks.Stats(ctx)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, statusResponse{
		Documents:  docCount,
		Embeddings: embCount,
		Dimension:  s.repository.Dimension(),
		Queue: queueStatusResponse{
			Pending:  stats.Pending,
			Inflight: stats.Inflight,
			Dead:     stats.Dead,
		},
	})
}

// respondDomainError maps pipeline errors onto HTTP status codes: caller
// mistakes are 400s, unknown documents 404, upstream AI failures 502, and
// anything else a 500.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrInvalidMetadata):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, query.ErrRetrievalFailed), errors.Is(err, query.ErrGenerationFailed):
		s.logger.Error("upstream pipeline failure", "err", err)
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("internal error", "err", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// isEmbedded reports whether the document is retrievable yet. Failures
// count as not embedded; the flag is informational.
func (s *Server) isEmbedded(r *http.Request, id core.ID) bool {
	_, err := s.repository.GetEmbedding(r.Context(), id)
	return err == nil
}

func pathID(r *http.Request) (core.ID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	return core.ID(id), err
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
