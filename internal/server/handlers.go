package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/ccvec"
	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/ingest"
	"github.com/hupe1980/ccvec/model"
)

// defaultK is used when a search request omits k.
const defaultK = 10

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("invalid request")

// searchFilters accepts the filter names of both web clients.
type searchFilters struct {
	MinScore  *float64 `json:"minScore,omitempty"`
	MinCsat   *float64 `json:"minCsat,omitempty"`
	Resolved  *bool    `json:"resolved,omitempty"`
	FCR       *bool    `json:"fcr,omitempty"`
	Sentiment *string  `json:"sentiment,omitempty"`
}

func (f searchFilters) filterSet() (model.FilterSet, error) {
	var fs model.FilterSet
	switch {
	case f.MinScore != nil:
		fs = fs.WithMinScore(*f.MinScore)
	case f.MinCsat != nil:
		fs = fs.WithMinScore(*f.MinCsat)
	}
	switch {
	case f.Resolved != nil:
		fs = fs.WithResolved(*f.Resolved)
	case f.FCR != nil:
		fs = fs.WithResolved(*f.FCR)
	}
	if f.Sentiment != nil && *f.Sentiment != "" {
		s, err := model.ParseSentiment(*f.Sentiment)
		if err != nil {
			return model.FilterSet{}, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		fs = fs.WithSentiment(s)
	}
	return fs, nil
}

type searchRequest struct {
	Query   string        `json:"query"`
	Vector  []float32     `json:"vector,omitempty"`
	K       *int          `json:"k,omitempty"`
	TopK    *int          `json:"top_k,omitempty"`
	Filters searchFilters `json:"filters"`
}

type searchResponse struct {
	Query   string               `json:"query,omitempty"`
	Results []model.SearchResult `json:"results"`
}

type indexResponse struct {
	ID      string `json:"id"`
	Indexed bool   `json:"indexed"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	k := defaultK
	switch {
	case req.K != nil:
		k = *req.K
	case req.TopK != nil:
		k = *req.TopK
	}
	if s.config != nil && s.config.MaxK > 0 && k > s.config.MaxK {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("k must be at most %d", s.config.MaxK))
		return
	}

	filters, err := req.Filters.filterSet()
	if err != nil {
		s.respondErr(w, err)
		return
	}

	var results []model.SearchResult
	switch {
	case len(req.Vector) > 0:
		if len(req.Vector) != s.db.Dimension() {
			s.respondErr(w, &ccvec.ErrDimensionMismatch{Expected: s.db.Dimension(), Actual: len(req.Vector)})
			return
		}
		results, err = s.db.SearchVector(r.Context(), req.Vector, k, filters)
	case req.Query != "":
		results, err = s.db.Search(r.Context(), req.Query, k, filters)
	default:
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if err != nil {
		s.logger.Error("search failed", "error", err)
		s.respondErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.respondError(w, http.StatusNotImplemented, "indexing not enabled")
		return
	}

	var req ingest.Request
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.logger.Debug("index request", "id", req.ID, "source_key", req.SourceKey)
	if err := s.pipeline.Index(r.Context(), req); err != nil {
		s.logger.Error("indexing failed", "id", req.ID, "error", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, indexResponse{ID: req.ID, Indexed: true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.db.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return codec.Default.Unmarshal(data, v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var dm *ccvec.ErrDimensionMismatch
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ingest.ErrInvalidRequest),
		errors.Is(err, ccvec.ErrInvalidK),
		errors.Is(err, ccvec.ErrInvalidID),
		errors.As(err, &dm):
		return http.StatusBadRequest
	case errors.Is(err, ccvec.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, blobstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ccvec.ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ccvec.ErrVersionConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	b, err := codec.Default.Marshal(data)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
