// Package rest exposes record sessions over HTTP: clients open a session,
// report view changes, focus changes, mutations and network conditions,
// and can inspect individual cache entries.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/invalidation"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/session"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// maxBodyBytes bounds request bodies; every body here is a few fields.
const maxBodyBytes = 64 << 10

// Handler serves the session endpoints.
type Handler struct {
	sessions        *session.Manager
	defaultStrategy record.LoadStrategy
	logger          *zap.Logger
}

// NewHandler creates a handler. An invalid default strategy means
// view-scoped loading.
func NewHandler(sessions *session.Manager, defaultStrategy record.LoadStrategy, logger *zap.Logger) *Handler {
	if !defaultStrategy.Valid() {
		defaultStrategy = record.ViewScoped
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:        sessions,
		defaultStrategy: defaultStrategy,
		logger:          logger,
	}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Delete("/", h.CloseSession)
			r.Get("/stats", h.GetStats)
			r.Post("/views/{view}", h.ActivateView)
			r.Post("/refocus", h.Refocus)
			r.Post("/invalidate", h.Invalidate)
			r.Put("/network", h.ReportNetwork)
			r.Get("/entries/{category}", h.GetEntry)
		})
	})
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	subject, err := record.NewSubjectID(req.Subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, _, err := h.sessions.Create(subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, sessionResponse{ID: id, Subject: subject.String()})
}

// CloseSession handles DELETE /sessions/{sessionId}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if !h.sessions.Close(id) {
		h.fail(w, r, errors.NotFound(errors.CodeSessionNotFound, "Session not found").WithResource(id).Build())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateView handles POST /sessions/{sessionId}/views/{view}?strategy=.
func (h *Handler) ActivateView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := record.ParseView(chi.URLParam(r, "view"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	strategy := h.defaultStrategy
	if name := r.URL.Query().Get("strategy"); name != "" {
		if strategy, err = record.ParseLoadStrategy(name); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	data, err := s.OnViewActivated(r.Context(), view, strategy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, toViewResponse(data, middleware.GetReqID(r.Context())))
}

// Refocus handles POST /sessions/{sessionId}/refocus.
func (h *Handler) Refocus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	revalidated, err := s.OnRefocus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, refocusResponse{
		Revalidated: append([]record.Category{}, revalidated.Slice()...),
	})
}

// Invalidate handles POST /sessions/{sessionId}/invalidate. The subject
// defaults to the session's own.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req invalidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	subject := s.Subject()
	if req.Subject != "" {
		parsed, err := record.NewSubjectID(req.Subject)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		subject = parsed
	}
	target, err := invalidation.ParseTarget(req.Target)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	affected, err := s.Invalidate(r.Context(), subject, target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, invalidateResponse{Affected: affected})
}

// ReportNetwork handles PUT /sessions/{sessionId}/network.
func (h *Handler) ReportNetwork(w http.ResponseWriter, r *http.Request) {
	var req networkRequest
	if !h.decode(w, r, &req) {
		return
	}
	degraded, err := h.sessions.ReportNetwork(chi.URLParam(r, "sessionId"), req.signals())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, networkResponse{Degraded: degraded})
}

// GetEntry handles GET /sessions/{sessionId}/entries/{category}.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	category, err := record.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := s.Entry(category)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, toEntryResponse(entry))
}

// GetStats handles GET /sessions/{sessionId}/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, s.Stats())
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.fail(w, r, errors.Validation(errors.CodeInvalidInput, "Invalid request body").
			WithDetails(err.Error()).
			Build())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	requestID := middleware.GetReqID(r.Context())

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respond(w, status, errors.NewErrorResponse(err, requestID))
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
