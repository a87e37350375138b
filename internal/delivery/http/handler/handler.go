package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/delivery/http/request"
	"github.com/user/knowledge-service/internal/delivery/http/response"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/internal/usecase"
	"github.com/user/knowledge-service/pkg/logger"
)

const maxBodyBytes = 1 << 20

type Enqueuer interface {
	Enqueue(ctx context.Context, url string, opts usecase.IngestOptions) (*entity.IngestRequest, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, opts usecase.SearchOptions) (*entity.SearchResult, error)
	Answer(ctx context.Context, question string, filters entity.SearchFilters) (*usecase.Answer, error)
	ListCollections(ctx context.Context) ([]entity.CollectionStats, error)
}

type SettingsService interface {
	Get(ctx context.Context) (entity.Settings, error)
	Update(ctx context.Context, patch entity.SettingsPatch) (entity.Settings, error)
}

type HealthChecker interface {
	Health(ctx context.Context) (*entity.HealthStatus, error)
}

type JobReader interface {
	Get(ctx context.Context, id int64) (*usecase.JobReport, error)
}

// Deps are the use cases behind the API. Queue may be nil, in which case
// every ingest runs inline.
type Deps struct {
	Ingester usecase.Ingester
	Queue    Enqueuer
	Search   Searcher
	Settings SettingsService
	Health   HealthChecker
	Jobs     JobReader
}

type Handler struct {
	deps   Deps
	logger *zap.Logger
}

func NewHandler(deps Deps, log *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger.OrNop(log)}
}

func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req request.IngestRequest
	if !h.decode(w, r, &req) {
		return
	}
	opts := usecase.IngestOptions{Collection: req.Collection, Force: req.Force}

	if h.deps.Queue != nil && !req.Wait {
		queued, err := h.deps.Queue.Enqueue(r.Context(), req.URL, opts)
		if err != nil {
			h.writeError(w, err, 0)
			return
		}
		h.writeJSON(w, http.StatusAccepted, response.IngestAccepted{
			Status:     "queued",
			RequestID:  queued.ID,
			URL:        queued.URL,
			EnqueuedAt: queued.EnqueuedAt,
		})
		return
	}

	res, err := h.deps.Ingester.Ingest(r.Context(), req.URL, opts)
	if err != nil {
		var jobID int64
		if res != nil {
			jobID = res.JobID
		}
		h.writeError(w, err, jobID)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sq := request.SearchQuery{
		Query:      strings.TrimSpace(q.Get("q")),
		Collection: q.Get("collection"),
		Domain:     q.Get("domain"),
		SourceType: strings.ToLower(q.Get("type")),
		URL:        q.Get("url"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeJSONError(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		sq.Limit = n
	}
	if err := request.Validate(sq); err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.deps.Search.Search(r.Context(), sq.Query, usecase.SearchOptions{Limit: sq.Limit, Filters: sq.Filters()})
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req request.AskRequest
	if !h.decode(w, r, &req) {
		return
	}
	ans, err := h.deps.Search.Answer(r.Context(), req.Question, req.Filters())
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	h.writeJSON(w, http.StatusOK, ans)
}

func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Search.ListCollections(r.Context())
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	if stats == nil {
		stats = []entity.CollectionStats{}
	}
	h.writeJSON(w, http.StatusOK, response.Collections{Collections: stats})
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSONError(w, "job id must be a positive integer", http.StatusBadRequest)
		return
	}
	report, err := h.deps.Jobs.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Settings.Get(r.Context())
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch entity.SettingsPatch
	if !h.decode(w, r, &patch) {
		return
	}
	s, err := h.deps.Settings.Update(r.Context(), patch)
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Health.Health(r.Context())
	if err != nil {
		h.writeError(w, err, 0)
		return
	}
	if !status.DBOK {
		h.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := request.Validate(dst); err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// StatusFor maps use case and repository errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidURL), errors.Is(err, usecase.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrExtractionFailed),
		errors.Is(err, repository.ErrExtractionTimeout),
		errors.Is(err, repository.ErrContentRestricted),
		errors.Is(err, repository.ErrUnsupportedContent):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, jobID int64) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
		msg = "Internal server error"
	}
	h.writeJSON(w, status, response.Error{Error: msg, JobID: jobID})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.Error{Error: message})
}
