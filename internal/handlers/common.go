package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zeto-space/exoclassify/internal/bulk"
	"github.com/zeto-space/exoclassify/internal/classify"
	"github.com/zeto-space/exoclassify/internal/history"
	"github.com/zeto-space/exoclassify/internal/models"
	"github.com/zeto-space/exoclassify/internal/pipeline"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/storage"
)

// maxUploadBytes caps bulk uploads at 10MB.
const maxUploadBytes = 10 * 1024 * 1024

// HistoryReader lists stored analyses. *history.Store implements it.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]history.Analysis, error)
	Get(ctx context.Context, id string) (history.Analysis, error)
}

type Handler struct {
	sessionStore *storage.SessionStore
	service      *pipeline.Service
	history      HistoryReader
	now          func() time.Time
}

// New wires the handlers to a pipeline. history may be nil.
func New(service *pipeline.Service, history HistoryReader) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		service:      service,
		history:      history,
		now:          time.Now,
	}
}

// Sessions exposes the store so the server can prune idle sessions.
func (h *Handler) Sessions() *storage.SessionStore {
	return h.sessionStore
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/upload", h.HandleUpload)
	mux.HandleFunc("/api/export", h.HandleExport)
	mux.HandleFunc("/api/history", h.HandleHistory)
	mux.HandleFunc("/api/history/", h.HandleHistoryDetail)
	mux.HandleFunc("/api/schema", h.HandleSchema)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var (
		missing *bulk.MissingColumnsError
		cell    *bulk.InvalidCellError
		rangeE  *pipeline.RangeError
		remote  *classify.Error
	)
	switch {
	case errors.Is(err, bulk.ErrEmptyInput),
		errors.Is(err, pipeline.ErrEmptyBatch),
		errors.As(err, &missing),
		errors.As(err, &cell),
		errors.As(err, &rangeE):
		return http.StatusBadRequest
	case errors.As(err, &remote):
		switch remote.Kind {
		case classify.KindTimeout:
			return http.StatusGatewayTimeout
		case classify.KindCanceled:
			return 499
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*storage.Session, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func sessionView(s *storage.Session) models.SessionView {
	state := s.State()
	return models.SessionView{
		ID:        s.ID,
		Status:    state.Status(),
		Cursor:    state.Cursor(),
		Total:     schema.Size,
		Prompt:    state.Prompt(),
		Answered:  state.Answered(),
		CreatedAt: s.CreatedAt,
	}
}
