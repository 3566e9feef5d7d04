package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zeto-space/exoclassify/internal/acquisition"
	"github.com/zeto-space/exoclassify/internal/models"
	"github.com/zeto-space/exoclassify/internal/storage"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		sessions := h.sessionStore.GetAll()
		sessionList := make([]models.SessionView, 0, len(sessions))
		for _, session := range sessions {
			sessionList = append(sessionList, sessionView(session))
		}
		h.writeJSON(w, sessionList)
	case "POST":
		session := h.sessionStore.Create()
		slog.Info("Acquisition session started", "session_id", session.ID)
		h.writeJSONStatus(w, http.StatusCreated, models.NewSession{
			SessionView: sessionView(session),
			Greeting:    acquisition.Greeting(),
		})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == "GET":
		h.writeJSON(w, sessionView(session))
	case action == "" && r.Method == "DELETE":
		h.sessionStore.Delete(sessionID)
		w.WriteHeader(http.StatusNoContent)
	case action == "answers" && r.Method == "POST":
		h.handleAnswer(w, r, session)
	case action == "classify" && r.Method == "POST":
		h.handleClassify(w, r, session)
	case action == "answers" || action == "classify" || action == "":
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	var request models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	raw, err := answerText(request.Value)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outputs, state, err := session.Submit(raw)
	if err != nil {
		// Only ErrSessionComplete reaches here.
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Debug("Answer applied", "session_id", session.ID, "cursor", state.Cursor(), "status", state.Status())

	response := models.AnswerResponse{
		Session: sessionView(session),
		Outputs: outputs,
	}
	if state.Status() != acquisition.StatusComplete {
		h.writeJSON(w, response)
		return
	}

	h.classifySession(w, r, session, response)
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	h.classifySession(w, r, session, models.AnswerResponse{Session: sessionView(session)})
}

// classifySession analyzes a complete session. Only the request holding the
// claim reaches the service; the session is removed on success and released
// on failure so the client can retry.
func (h *Handler) classifySession(w http.ResponseWriter, r *http.Request, session *storage.Session, response models.AnswerResponse) {
	rec, err := session.Claim()
	if err != nil {
		slog.Warn("Classification refused", "session_id", session.ID, "err", err)
		response.Error = err.Error()
		h.writeJSONStatus(w, http.StatusConflict, response)
		return
	}

	result, err := h.service.AnalyzeOne(r.Context(), rec)
	if err != nil {
		session.Release()
		slog.Error("Classification failed", "session_id", session.ID, "err", err)
		response.Error = err.Error()
		h.writeJSONStatus(w, errorStatus(err), response)
		return
	}

	h.sessionStore.Delete(session.ID)
	response.Result = &result
	h.writeJSON(w, response)
}

func answerText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("value must be a string or number, got %T", v)
	}
}
